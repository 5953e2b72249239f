package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/rumcollect/internal/analyzer"
	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/output"
	"github.com/bimmerbailey/rumcollect/internal/tail"
)

var tailCmd = &cobra.Command{
	Use:   "tail [flags] <file>",
	Short: "Live-tail an event log with redaction",
	Long: `Watch an event log in real-time, similar to 'tail -f', printing every
record with its URLs redacted. Patterns are matched against the cleaned URL.

Examples:
  rumcollect tail events.log
  rumcollect tail --checkpoint click events.log
  rumcollect tail --pattern "<pnr>" -n 50 events.log
  rumcollect tail --follow-rotate /var/log/rum/events.log`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringP("pattern", "p", "", "only show records whose cleaned URL matches regex pattern")
	tailCmd.Flags().String("checkpoint", "", "only show records with this checkpoint")
	tailCmd.Flags().IntP("lines", "n", 10, "number of initial records to show")
	tailCmd.Flags().Bool("no-follow", false, "print last N records and exit (don't follow)")
	tailCmd.Flags().Bool("follow-rotate", false, "follow through log rotations (continue when file is renamed/removed)")
	tailCmd.Flags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	patternStr, _ := cmd.Flags().GetString("pattern")
	checkpoint, _ := cmd.Flags().GetString("checkpoint")
	lines, _ := cmd.Flags().GetInt("lines")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	followRotate, _ := cmd.Flags().GetBool("follow-rotate")
	noColor, _ := cmd.Flags().GetBool("no-color")

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	var pattern *regexp.Regexp
	if patternStr != "" {
		var err error
		if pattern, err = regexp.Compile(patternStr); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}
	a := analyzer.New(pipeline)

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}
	w := output.New(cmd.OutOrStdout(), output.FormatText)

	tailer := tail.New(tail.Options{
		FilePath:     filePath,
		Lines:        lines,
		Follow:       !noFollow,
		FollowRotate: followRotate,
		Pattern:      pattern,
		Checkpoint:   checkpoint,
		Redact: func(rec config.Record) config.Record {
			cleaned, _ := a.Redact(rec)
			return cleaned
		},
		OutputFunc: func(rec config.Record) error {
			return w.WriteColoredRecord(rec, colorMode)
		},
		Logger: log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tailer.Run(ctx)
	if errors.Is(err, tail.ErrRotated) {
		return nil
	}
	return err
}
