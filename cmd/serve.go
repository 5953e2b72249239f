package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/rumcollect/internal/collector"
	"github.com/bimmerbailey/rumcollect/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the beacon collector",
	Long: `Start the HTTP beacon collector. Beacons are accepted as a POST body or
as the data query parameter of a GET request, redacted, and written to the
configured sinks.

Examples:
  rumcollect serve
  rumcollect serve --addr :9000 --sink console --sink file --file events.log
  rumcollect serve --rate-limit 5 --burst 10`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().StringSlice("sink", []string{"console"}, "event sinks (console, file, slog)")
	serveCmd.Flags().String("file", "", "event file for the file sink")
	serveCmd.Flags().Float64("rate-limit", 0, "requests per second per client (0 disables)")
	serveCmd.Flags().Int("burst", 0, "rate limit burst (defaults to the rate)")
	serveCmd.Flags().String("host", "", "host reported in events (defaults to the request host)")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("collector.sinks", serveCmd.Flags().Lookup("sink"))
	_ = viper.BindPFlag("collector.file", serveCmd.Flags().Lookup("file"))
	_ = viper.BindPFlag("collector.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
	_ = viper.BindPFlag("collector.burst", serveCmd.Flags().Lookup("burst"))
	_ = viper.BindPFlag("collector.host", serveCmd.Flags().Lookup("host"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	srv, closeSinks, err := buildServer(cfg, cmd.OutOrStdout(), log)
	if err != nil {
		return err
	}
	defer closeSinks()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// buildServer wires the redaction pipeline, sinks and limiter into a
// collector server. The returned func closes the sinks.
func buildServer(cfg config.Config, stdout io.Writer, log *slog.Logger) (*collector.Server, func() error, error) {
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return nil, nil, err
	}

	sinks, err := collector.OpenSinks(cfg.Collector.Sinks, collector.SinkOptions{
		Stdout: stdout,
		File:   cfg.Collector.File,
		Logger: log,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(sinks.Sinks()) == 0 {
		return nil, nil, fmt.Errorf("no sinks configured")
	}

	var limiter *collector.Limiter
	if cfg.Collector.RateLimit > 0 {
		limiter = collector.NewLimiter(cfg.Collector.RateLimit, cfg.Collector.Burst)
	}

	log.Debug("collector configured",
		"filters", pipeline.Filters(),
		"sinks", cfg.Collector.Sinks,
		"rate_limit", cfg.Collector.RateLimit,
	)

	handler := collector.NewHandler(collector.Options{
		Pipeline: pipeline,
		Sinks:    sinks,
		Limiter:  limiter,
		Logger:   log,
		Host:     cfg.Collector.Host,
		Version:  version,
	})

	srv := collector.NewServer(handler, collector.ServerOptions{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeoutDuration(5 * time.Second),
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(10 * time.Second),
		Logger:          log,
	})
	return srv, sinks.Close, nil
}
