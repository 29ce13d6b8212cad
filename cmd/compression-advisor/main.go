package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/opscart/table-compression-advisor/pkg/advisor"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/executor"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/output"
	"github.com/opscart/table-compression-advisor/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	preset       string
	outputFormat string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "compression-advisor",
		Short:         "Table compression advisor",
		Long:          `Find tables that benefit from compression, recommend a scheme for each, apply it safely and keep a history of outcomes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default $ADVISOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "Config preset: dev, production")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json (scan also accepts csv, html)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(),
		newRecommendCmd(),
		newCompareCmd(),
		newExecuteCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newRecommendationsCmd(),
		newStatsCmd(),
		newPurgeCmd(),
		newServeMetricsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything a command needs; close releases it in reverse order
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	advisor *advisor.Advisor
	out     output.Handler
	closers []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// fail turns an advisor error into the sanitized form shown to the user
func (a *app) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if pub := a.advisor.Sanitize(ctx, err); pub != nil {
		return pub
	}
	return err
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	switch preset {
	case "":
	case "dev":
		cfg.UseDevPreset()
	case "production":
		cfg.UseProductionPreset()
	default:
		return nil, fmt.Errorf("unknown preset: %s", preset)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, w io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	// csv and html are report formats handled by scan; other commands print text
	handlerFormat := outputFormat
	if isReportFormat(outputFormat) {
		handlerFormat = "text"
	}
	out, err := output.NewHandler(handlerFormat, w)
	if err != nil {
		a.close()
		return nil, err
	}
	a.out = out

	source, err := datasource.NewOracleSource(datasource.Config{
		Driver:       cfg.DatabaseDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, source)

	if cfg.PrometheusURL != "" {
		prom, err := datasource.NewPrometheusActivitySource(cfg.PrometheusURL, 0, logger)
		if err != nil {
			logger.Warn("prometheus initialization failed, using database activity counters", "error", err)
		} else if prom.IsAvailable(ctx) {
			logger.Info("using prometheus activity source", "url", cfg.PrometheusURL)
			source.WithActivitySource(prom)
		} else {
			logger.Warn("prometheus not reachable, using database activity counters", "url", cfg.PrometheusURL)
		}
	}

	store, err := storage.Open(storage.Config{
		Backend: cfg.HistoryBackend,
		Path:    cfg.HistoryPath,
		URL:     cfg.HistoryURL,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	a.closers = append(a.closers, store)

	a.advisor = advisor.New(source, store, cfg, logger, advisor.Options{
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Registry: executor.NewRegistry(),
	})
	logger.Debug("advisor ready", "history_backend", cfg.HistoryBackend, "output", out.Format())
	return a, nil
}

// run wraps a command body with app setup and teardown
func run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.close()

		err = fn(ctx, a, cmd, args)
		var usage usageError
		if errors.As(err, &usage) {
			return err
		}
		return a.fail(ctx, err)
	}
}

// usageError is shown verbatim; it only describes the caller's own flags
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}
