package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/classifier/internal/control"
	"github.com/vietddude/classifier/internal/core/config"
)

var (
	cfgPath       string
	isDebug       bool
	jobName       string
	batchSize     int
	maxConcurrent int
	continuous    bool
	pollInterval  time.Duration
	maxIterations int
)

var rootCmd = &cobra.Command{
	Use:   "classifier",
	Short: "Batch LLM classification service",
	Long:  `Classifier pulls unclassified records from the store, classifies them through an LLM service and checkpoints progress for crash recovery.`,
	Run:   runJob,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&jobName, "job", "", "job name (overrides config)")

	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per batch (overrides config)")
	rootCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "concurrent classification tasks (overrides config)")
	rootCmd.Flags().BoolVar(&continuous, "continuous", false, "keep polling after the store drains")
	rootCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval in continuous mode (overrides config)")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "stop after N batches (0 = no limit)")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if jobName != "" {
		cfg.Job.Name = jobName
	}
	if batchSize > 0 {
		cfg.Job.BatchSize = batchSize
	}
	if maxConcurrent > 0 {
		cfg.Job.MaxConcurrent = maxConcurrent
	}
	if continuous {
		cfg.Job.Continuous = true
	}
	if pollInterval > 0 {
		cfg.Job.PollInterval = pollInterval
	}
	if maxIterations > 0 {
		cfg.Job.MaxIterations = maxIterations
	}
	return cfg, nil
}

// initLogging sets up the global slog handler.
func initLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runJob(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	app, err := control.NewService(control.Config{
		Port:     cfg.Server.Port,
		Job:      cfg.Job,
		LLM:      cfg.LLM,
		Redis:    cfg.Redis,
		Database: cfg.Database,
	})
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, finishing in-flight records...", "signal", sig)
		cancel()
	}()

	_, runErr := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	// Interrupt and drain are both clean exits; only unrecoverable store
	// failures are not.
	if runErr != nil {
		os.Exit(1)
	}
}
