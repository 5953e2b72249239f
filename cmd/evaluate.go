package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/rumcollect/internal/analyzer"
	"github.com/bimmerbailey/rumcollect/internal/output"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure booking-code filter accuracy",
	Long: fmt.Sprintf(`Run a list of dictionary words and a list of booking-code shaped strings
through the redaction pipeline. Words must survive and codes must be masked.
The command fails when either error rate exceeds %.0f%%.

Examples:
  rumcollect evaluate
  rumcollect evaluate --words words.txt --codes codes.txt
  rumcollect evaluate --format json`, analyzer.MaxErrorRate),
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("words", "", "file of words that must not be masked (default is the built-in list)")
	evaluateCmd.Flags().String("codes", "", "file of codes that must be masked (default is the built-in list)")
	evaluateCmd.Flags().Bool("list", false, "list every misclassified entry")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	wordsFile, _ := cmd.Flags().GetString("words")
	codesFile, _ := cmd.Flags().GetString("codes")
	list, _ := cmd.Flags().GetBool("list")

	words := analyzer.CommonWords()
	if wordsFile != "" {
		var err error
		if words, err = analyzer.ReadListFile(wordsFile); err != nil {
			return err
		}
	}
	codes := analyzer.QuasiPNRs()
	if codesFile != "" {
		var err error
		if codes, err = analyzer.ReadListFile(codesFile); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}

	ev := analyzer.Evaluate(pipeline, words, codes)

	format := output.ParseFormat(cfg.Format)
	out := cmd.OutOrStdout()
	if format == output.FormatJSON || format == output.FormatYAML {
		err = output.New(out, format).WriteReport(ev)
	} else {
		err = writeEvaluation(out, ev, list)
	}
	if err != nil {
		return err
	}

	if !ev.Passed() {
		return fmt.Errorf("error rate above %.0f%% (false positives %.2f%%, false negatives %.2f%%)",
			analyzer.MaxErrorRate, ev.FalsePositiveRate, ev.FalseNegativeRate)
	}
	return nil
}

func writeEvaluation(w io.Writer, ev analyzer.Evaluation, list bool) error {
	fmt.Fprintf(w, "Words: %d\n", ev.Words)
	fmt.Fprintf(w, "Codes: %d\n", ev.Codes)
	fmt.Fprintf(w, "False Positives: %d (%.2f%%)\n", len(ev.FalsePositives), ev.FalsePositiveRate)
	fmt.Fprintf(w, "False Negatives: %d (%.2f%%)\n", len(ev.FalseNegatives), ev.FalseNegativeRate)

	if list {
		if len(ev.FalsePositives) > 0 {
			fmt.Fprintln(w, "\nMasked words:")
			for _, s := range ev.FalsePositives {
				fmt.Fprintf(w, "  %s\n", s)
			}
		}
		if len(ev.FalseNegatives) > 0 {
			fmt.Fprintln(w, "\nMissed codes:")
			for _, s := range ev.FalseNegatives {
				fmt.Fprintf(w, "  %s\n", s)
			}
		}
	}

	status := "PASS"
	if !ev.Passed() {
		status = "FAIL"
	}
	_, err := fmt.Fprintf(w, "\nResult: %s\n", status)
	return err
}
