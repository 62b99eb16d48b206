package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/limaJavier/modelbrowser/internal/config"
	"github.com/limaJavier/modelbrowser/internal/logging"
	"github.com/limaJavier/modelbrowser/internal/metrics"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/limaJavier/modelbrowser/pkg/translation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfg           config.Config
	logger        = logging.NewNop()
	registry      = prometheus.NewRegistry()
	observer      = metrics.New(registry)
	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "modelbrowser",
	Short: "Translate logic formulas, solve them and browse their models",
	Long: `modelbrowser compiles formulas to clauses with an external translator and
enumerates their models on demand through an interactive solver process.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON config file; defaults to config.json next to the executable")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		if configPath, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = logging.New(level)
	slog.SetDefault(logger)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		pterm.DisableStyling()
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}
	logger.Debug("configuration loaded", "path", configPath, "translator", cfg.Translator.Command, "solver", cfg.Solver.Command)
	return nil
}

func serveMetrics(addr string) {
	metricsServer = &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

func teardown(*cobra.Command, []string) error {
	if metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return metricsServer.Shutdown(ctx)
}

func newTranslationService() *translation.Service {
	return translation.NewService(
		cfg.Translator.Command,
		translation.WithArgs(cfg.Translator.Args...),
		translation.WithWorkDir(cfg.WorkDir),
		translation.WithLogger(logger),
		translation.WithMetrics(observer),
	)
}

func sessionOptions() []sat.Option {
	return []sat.Option{
		sat.WithArgs(cfg.Solver.Args...),
		sat.WithRoundTimeout(cfg.RoundTimeout),
		sat.WithGracePeriod(cfg.GracePeriod),
		sat.WithLogger(logger),
		sat.WithMetrics(observer),
	}
}
