package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/output"
)

// Version information set via ldflags at build time. version is also
// reported by the collector's /info.json.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Built   string `json:"built" yaml:"built"`
	Go      string `json:"go" yaml:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := versionInfo{Version: version, Commit: commit, Built: date, Go: runtime.Version()}

	format := output.ParseFormat(viper.GetString("format"))
	if format == output.FormatJSON || format == output.FormatYAML {
		return output.New(cmd.OutOrStdout(), format).WriteReport(info)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "rumcollect %s (commit: %s, built: %s, %s)\n",
		info.Version, info.Commit, info.Built, info.Go)
	return err
}
