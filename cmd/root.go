package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/model"
	"github.com/bimmerbailey/rumcollect/internal/privacy"
	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rumcollect",
	Short: "A privacy-preserving RUM beacon collector",
	Long: `rumcollect receives Real User Monitoring beacons from browsers and
persists sanitized copies. URL paths are scrubbed of booking codes, tokens
and other identifiers before anything is written.

It also ships the offline tools used to inspect and tune the redaction engine.

Examples:
  rumcollect serve --addr :8080
  rumcollect clean /trip/AB12CD/details
  rumcollect score x7Kq9Zt2LmP4 --features
  rumcollect scan events.log
  rumcollect tail events.log
  rumcollect evaluate`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rumcollect.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, yaml, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".rumcollect")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RUMCOLLECT")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// setDefaults registers a default for every configuration key.
func setDefaults() {
	pnr := privacy.DefaultPNRConfig()

	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("timestamp_formats", []string{
		"2006-01-02T15:04:05.999999999Z07:00", // RFC3339
		"2006-01-02 15:04:05",                 // Common datetime
		"02/Jan/2006:15:04:05 -0700",          // Apache/Nginx
	})

	viper.SetDefault("log.level", "info")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", "5s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("redaction.filters", privacy.DefaultFilters())
	viper.SetDefault("redaction.pnr.entropy_threshold", pnr.EntropyThreshold)
	viper.SetDefault("redaction.pnr.bigram_threshold", pnr.BigramThreshold)
	viper.SetDefault("redaction.pnr.min_length", pnr.MinLength)
	viper.SetDefault("redaction.pnr.max_length", pnr.MaxLength)
	viper.SetDefault("redaction.max_path_length", privacy.DefaultMaxLength)

	viper.SetDefault("model.path", "")
	viper.SetDefault("model.threshold", model.DefaultThreshold)

	viper.SetDefault("tables.corpus", "")

	viper.SetDefault("collector.sinks", []string{"console"})
	viper.SetDefault("collector.file", "")
	viper.SetDefault("collector.rate_limit", 0.0)
	viper.SetDefault("collector.burst", 0)
	viper.SetDefault("collector.host", "")
}

// loadConfig decodes the merged viper configuration.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose lowers the level to debug.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, ok := config.ParseLevel(cfg.Log.Level)
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// loadTables reads the configured corpus, or the embedded one.
func loadTables(cfg config.Config) (*textstats.Tables, error) {
	tables, err := textstats.Load(cfg.Tables.Corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to load frequency tables: %w", err)
	}
	return tables, nil
}

// loadPipeline builds the redaction pipeline from configuration.
func loadPipeline(cfg config.Config) (*privacy.Pipeline, error) {
	tables, err := loadTables(cfg)
	if err != nil {
		return nil, err
	}
	return privacy.New(tables, cfg.Redaction.PrivacyOptions()), nil
}
