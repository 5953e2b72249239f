package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/analyzer"
	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/output"
	"github.com/bimmerbailey/rumcollect/internal/parser"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] <file|dir|glob...>",
	Short: "Redact and summarize beacon logs",
	Long: `Read beacon logs (JSON lines, access logs or bare URLs), run every URL
field through the redaction pipeline and print the cleaned records.
Patterns are matched against the cleaned URL.

Examples:
  rumcollect scan events.log
  rumcollect scan --summary /var/log/rum/
  rumcollect scan --checkpoint click --since 2h events.log
  rumcollect scan --group-by path --top 20 events.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringP("pattern", "p", "", "regex matched against the cleaned URL")
	scanCmd.Flags().BoolP("invert", "V", false, "invert match (show non-matching records)")
	scanCmd.Flags().String("checkpoint", "", "only include records with this checkpoint")
	scanCmd.Flags().String("since", "", "only include records since timestamp (RFC3339 or relative like '1h')")
	scanCmd.Flags().String("until", "", "only include records until timestamp (RFC3339 or relative like '1h')")
	scanCmd.Flags().Bool("summary", false, "print redaction statistics instead of records")
	scanCmd.Flags().String("group-by", "", "count records by field (host, checkpoint, user_agent, path)")
	scanCmd.Flags().Int("top", 10, "number of top URLs or groups to show")
	scanCmd.Flags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	pattern, _ := cmd.Flags().GetString("pattern")
	invert, _ := cmd.Flags().GetBool("invert")
	checkpoint, _ := cmd.Flags().GetString("checkpoint")
	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")
	summary, _ := cmd.Flags().GetBool("summary")
	groupBy, _ := cmd.Flags().GetString("group-by")
	topN, _ := cmd.Flags().GetInt("top")
	noColor, _ := cmd.Flags().GetBool("no-color")

	if invert && pattern == "" {
		return fmt.Errorf("--invert requires --pattern")
	}

	opts := analyzer.FilterOptions{
		Pattern:    pattern,
		Checkpoint: checkpoint,
		Invert:     invert,
	}
	var err error
	if sinceStr != "" {
		if opts.Since, err = config.ParseTimeRef(sinceStr); err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
	}
	if untilStr != "" {
		if opts.Until, err = config.ParseTimeRef(untilStr); err != nil {
			return fmt.Errorf("invalid --until value: %w", err)
		}
	}

	files, err := config.ExpandPaths(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}

	p := parser.New(viper.GetStringSlice("timestamp_formats"))
	var records []config.Record
	for _, f := range files {
		recs, err := p.ParseFile(f)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}

	a := analyzer.New(pipeline)
	cleaned, stats, err := a.Scan(records, opts, topN)
	if err != nil {
		return err
	}

	format := output.ParseFormat(cfg.Format)
	out := cmd.OutOrStdout()
	w := output.New(out, format)

	switch {
	case groupBy != "":
		groups, err := a.GroupBy(cleaned, groupBy, topN)
		if err != nil {
			return err
		}
		if format == output.FormatJSON || format == output.FormatYAML {
			return w.WriteReport(groups)
		}
		return writeGroups(out, groupBy, groups)

	case summary:
		if format == output.FormatJSON || format == output.FormatYAML {
			return w.WriteReport(stats)
		}
		return writeStats(out, stats)
	}

	if format != output.FormatText {
		return w.WriteRecords(cleaned)
	}

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}
	for _, r := range cleaned {
		if err := w.WriteColoredRecord(r, colorMode); err != nil {
			return err
		}
	}
	if len(files) > 1 || viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d records, %d redacted, from %d file(s)\n",
			stats.TotalRecords, stats.RedactedRecords, len(files))
	}
	return nil
}

func writeStats(w io.Writer, s analyzer.Stats) error {
	fmt.Fprintf(w, "Total Records: %d\n", s.TotalRecords)
	fmt.Fprintf(w, "Redacted Records: %d\n", s.RedactedRecords)
	fmt.Fprintf(w, "Redaction Rate: %.2f%%\n", s.RedactionRate*100)
	if !s.FirstEvent.IsZero() {
		fmt.Fprintf(w, "Time Range: %s - %s\n", s.FirstEvent.Format(time.RFC3339), s.LastEvent.Format(time.RFC3339))
	}

	if len(s.FilterCounts) > 0 {
		fmt.Fprintln(w, "\nReplacements:")
		names := make([]string, 0, len(s.FilterCounts))
		for name := range s.FilterCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, s.FilterCounts[name])
		}
	}

	if len(s.TopURLs) > 0 {
		fmt.Fprintln(w, "\nTop URLs:")
		for _, u := range s.TopURLs {
			fmt.Fprintf(w, "  [%d] %s\n", u.Count, u.URL)
		}
	}
	return nil
}

func writeGroups(w io.Writer, field string, groups []analyzer.GroupedResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOUNT\tPERCENT\n", strings.ToUpper(field))
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\n", g.Key, g.Count, g.Percent)
	}
	return tw.Flush()
}
