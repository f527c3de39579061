package config

import (
	"time"

	"github.com/vietddude/classifier/internal/infra/llm"
	redisclient "github.com/vietddude/classifier/internal/infra/redis"
	"github.com/vietddude/classifier/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Job      JobConfig          `yaml:"job"`
	LLM      llm.Config         `yaml:"llm"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// JobConfig holds batch job settings.
type JobConfig struct {
	Name          string        `yaml:"name"`
	BatchSize     int           `yaml:"batch_size"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Continuous    bool          `yaml:"continuous"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxIterations int           `yaml:"max_iterations"`
	StalledAfter  time.Duration `yaml:"stalled_after"` // audit threshold for stuck processing records
}
