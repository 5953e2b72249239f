package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/features"
	"github.com/bimmerbailey/rumcollect/internal/model"
	"github.com/bimmerbailey/rumcollect/internal/output"
)

var scoreCmd = &cobra.Command{
	Use:   "score [flags] <segment...>",
	Short: "Score path segments with the PII model",
	Long: `Run segments through the tree ensemble and print the PII probability.
Segments shorter than five characters always score 0.

Examples:
  rumcollect score x7Kq9Zt2LmP4 products
  rumcollect score --threshold 0.8 a1b2c3d4e5f6
  rumcollect score --features --format yaml order-12345678`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().Float64("threshold", model.DefaultThreshold, "probability at or above which a segment is PII")
	scoreCmd.Flags().String("model", "", "model file (default is the embedded model)")
	scoreCmd.Flags().Bool("features", false, "include the extracted feature vector")

	_ = viper.BindPFlag("model.threshold", scoreCmd.Flags().Lookup("threshold"))
	_ = viper.BindPFlag("model.path", scoreCmd.Flags().Lookup("model"))

	rootCmd.AddCommand(scoreCmd)
}

// scoreResult is the outcome for one segment.
type scoreResult struct {
	model.Detection `yaml:",inline"`

	Segment  string           `json:"segment" yaml:"segment"`
	Features *features.Vector `json:"features,omitempty" yaml:"features,omitempty"`
}

func runScore(cmd *cobra.Command, args []string) error {
	withFeatures, _ := cmd.Flags().GetBool("features")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := model.Load(cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	results := make([]scoreResult, 0, len(args))
	for _, seg := range args {
		r := scoreResult{
			Segment:   seg,
			Detection: m.Detect(seg, cfg.Model.Threshold),
		}
		if withFeatures {
			v := features.Extract(seg)
			r.Features = &v
		}
		results = append(results, r)
	}

	format := output.ParseFormat(cfg.Format)
	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.New(out, format).WriteReport(results)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tPROBABILITY\tPII")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.4f\t%t\n", r.Segment, r.Probability, r.IsPII)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if withFeatures {
		for _, r := range results {
			fmt.Fprintf(out, "\n%s:\n", r.Segment)
			values := r.Features.Values()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for i, name := range features.Names {
				fmt.Fprintf(tw, "  %s\t%g\n", name, values[i])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
