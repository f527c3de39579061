// Package control wires storage, the classification client, the checkpoint
// manager and the batch orchestrator into a runnable service.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/classifier/internal/core/checkpoint"
	"github.com/vietddude/classifier/internal/core/config"
	"github.com/vietddude/classifier/internal/health"
	"github.com/vietddude/classifier/internal/infra/llm"
	redisclient "github.com/vietddude/classifier/internal/infra/redis"
	"github.com/vietddude/classifier/internal/infra/storage"
	"github.com/vietddude/classifier/internal/infra/storage/memory"
	"github.com/vietddude/classifier/internal/infra/storage/postgres"
	"github.com/vietddude/classifier/internal/job"
	"github.com/vietddude/classifier/internal/retry"
)

// Config holds the assembled service configuration.
type Config struct {
	Port     int
	Job      config.JobConfig
	LLM      llm.Config
	Redis    redisclient.Config
	Database postgres.Config

	// MigrationsDir is where goose migrations live, relative to CWD.
	MigrationsDir string
}

// Service is the assembled classification pipeline.
type Service struct {
	cfg          Config
	orchestrator *job.Orchestrator
	checkpoint   *checkpoint.Manager
	records      storage.RecordRepository
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	failedQueue  *redisclient.FailedRecordQueue
	log          *slog.Logger
}

// NewService creates a Service with all dependencies initialized. Without a
// database URL it falls back to the in-memory store, which is only useful
// for local experiments.
func NewService(cfg Config) (*Service, error) {
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	var recordRepo storage.RecordRepository
	var jobStateRepo storage.JobStateRepository
	var db *postgres.DB
	var storePinger health.StorePinger

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(cfg.MigrationsDir); err != nil {
			return nil, err
		}

		recordRepo = postgres.NewRecordRepo(db)
		jobStateRepo = postgres.NewJobStateRepo(db)
		storePinger = db
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		recordRepo = memory.NewRecordRepo(store)
		jobStateRepo = memory.NewJobStateRepo(store)
		slog.Info("Using Memory storage")
	}

	var redisClient *redisclient.Client
	var failedQueue *redisclient.FailedRecordQueue
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, failed-record queue disabled", "error", err)
		} else {
			failedQueue = redisclient.NewFailedRecordQueue(redisClient, cfg.Job.Name)
			slog.Info("Failed-record queue initialized", "job", cfg.Job.Name)
		}
	}

	classifier := llm.New(cfg.LLM, retry.DefaultConfig)
	checkpointMgr := checkpoint.NewManager(jobStateRepo)

	var failedSink job.FailedSink
	if failedQueue != nil {
		failedSink = failedQueue
	}

	orchestrator := job.New(job.Config{
		JobName:       cfg.Job.Name,
		BatchSize:     cfg.Job.BatchSize,
		MaxConcurrent: cfg.Job.MaxConcurrent,
		Continuous:    cfg.Job.Continuous,
		PollInterval:  cfg.Job.PollInterval,
		MaxIterations: cfg.Job.MaxIterations,
	}, recordRepo, checkpointMgr, classifier, failedSink)

	monitor := health.NewMonitor(storePinger, checkpointMgr, orchestrator, cfg.Job.Name)
	healthServer := health.NewServer(monitor, cfg.Port)

	return &Service{
		cfg:          cfg,
		orchestrator: orchestrator,
		checkpoint:   checkpointMgr,
		records:      recordRepo,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		failedQueue:  failedQueue,
		log:          slog.Default(),
	}, nil
}

// Run starts the health server and executes the batch job until it drains,
// errors or ctx is cancelled.
func (s *Service) Run(ctx context.Context) (*job.Summary, error) {
	go func() {
		if err := s.healthServer.Start(); err != nil && ctx.Err() == nil {
			s.log.Debug("Health server stopped", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	return s.orchestrator.Run(ctx)
}

// Stop releases connections and shuts down the health server.
func (s *Service) Stop(ctx context.Context) error {
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}
	return s.healthServer.Stop(ctx)
}

// Records exposes the record store for admin commands.
func (s *Service) Records() storage.RecordRepository { return s.records }

// Checkpoint exposes the job state manager for admin commands.
func (s *Service) Checkpoint() *checkpoint.Manager { return s.checkpoint }

// FailedQueue returns the Redis inspection queue, or nil when Redis is not
// configured.
func (s *Service) FailedQueue() *redisclient.FailedRecordQueue { return s.failedQueue }
