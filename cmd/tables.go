package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/output"
	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Inspect the n-gram frequency tables",
	Long: `Build the bigram, trigram, quadgram and rich trigram tables from the
corpus and print the most probable n-grams of each.

Examples:
  rumcollect tables
  rumcollect tables --corpus segments.csv --top 20
  rumcollect tables --format yaml`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func init() {
	tablesCmd.Flags().String("corpus", "", "corpus CSV of segment,count rows (default is the embedded corpus)")
	tablesCmd.Flags().Int("top", 10, "number of n-grams to show per table")

	_ = viper.BindPFlag("tables.corpus", tablesCmd.Flags().Lookup("corpus"))

	rootCmd.AddCommand(tablesCmd)
}

// tableSummary describes one frequency table.
type tableSummary struct {
	Name     string            `json:"name" yaml:"name"`
	Order    int               `json:"order" yaml:"order"`
	Alphabet int               `json:"alphabet" yaml:"alphabet"`
	NonZero  int               `json:"non_zero" yaml:"non_zero"`
	Top      []textstats.NGram `json:"top" yaml:"top"`
}

type tablesReport struct {
	Entries int            `json:"entries" yaml:"entries"`
	Tables  []tableSummary `json:"tables" yaml:"tables"`
}

func runTables(cmd *cobra.Command, args []string) error {
	topN, _ := cmd.Flags().GetInt("top")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tables, err := loadTables(cfg)
	if err != nil {
		return err
	}

	report := tablesReport{Entries: tables.Entries()}
	for _, named := range []struct {
		name  string
		table textstats.Table
	}{
		{"bigram", tables.Bigram},
		{"trigram", tables.Trigram},
		{"quadgram", tables.Quadgram},
		{"rich_trigram", tables.RichTrigram},
	} {
		report.Tables = append(report.Tables, tableSummary{
			Name:     named.name,
			Order:    named.table.Order,
			Alphabet: named.table.Alphabet,
			NonZero:  named.table.NonZero(),
			Top:      named.table.Top(topN),
		})
	}

	format := output.ParseFormat(cfg.Format)
	out := cmd.OutOrStdout()
	if format == output.FormatJSON || format == output.FormatYAML {
		return output.New(out, format).WriteReport(report)
	}
	return writeTables(out, report)
}

func writeTables(w io.Writer, report tablesReport) error {
	fmt.Fprintf(w, "Corpus Entries: %d\n", report.Entries)
	for _, t := range report.Tables {
		fmt.Fprintf(w, "\n%s (order %d, alphabet %d, %d non-zero):\n", t.Name, t.Order, t.Alphabet, t.NonZero)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, g := range t.Top {
			fmt.Fprintf(tw, "  %q\t%.6f\n", g.Symbols, g.Probability)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
