package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/output"
	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [flags] [path...]",
	Short: "Redact URL paths",
	Long: `Run paths or URLs through the redaction pipeline and print the result.
Without arguments, one path per line is read from stdin.

Examples:
  rumcollect clean /trip/AB12CD/details
  rumcollect clean --url "https://shop.example/order/X9Y8Z7?session=1"
  rumcollect clean --filter jwt --filter pnr --filter uuid < paths.txt
  rumcollect clean --format json /content/ABCDE`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("url", false, "treat input as full URLs (drops query, fragment and credentials)")
	cleanCmd.Flags().StringSlice("filter", nil, "filters to apply, in order (jwt, pnr, uuid, email)")
	cleanCmd.Flags().Bool("no-color", false, "disable colored output")

	_ = viper.BindPFlag("redaction.filters", cleanCmd.Flags().Lookup("filter"))

	rootCmd.AddCommand(cleanCmd)
}

// cleanResult is one cleaned input.
type cleanResult struct {
	Input  string         `json:"input" yaml:"input"`
	Output string         `json:"output" yaml:"output"`
	Counts privacy.Counts `json:"counts,omitempty" yaml:"counts,omitempty"`
}

func runClean(cmd *cobra.Command, args []string) error {
	asURL, _ := cmd.Flags().GetBool("url")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	results := make([]cleanResult, 0, len(inputs))
	for _, in := range inputs {
		var r cleanResult
		r.Input = in
		if asURL {
			r.Output, r.Counts = pipeline.CleanURLAndCount(in)
		} else {
			r.Output, r.Counts = pipeline.CleanPathAndCount(in)
		}
		results = append(results, r)
	}

	format := output.ParseFormat(cfg.Format)
	w := output.New(cmd.OutOrStdout(), format)
	if format == output.FormatJSON || format == output.FormatYAML {
		return w.WriteReport(results)
	}

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}
	for _, r := range results {
		if err := w.WriteColoredLine(r.Output, colorMode); err != nil {
			return err
		}
	}
	return nil
}
