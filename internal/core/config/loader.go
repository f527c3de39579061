package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults. Exposed so a config
// assembled from flags alone gets the same treatment as a loaded file.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Job.Name == "" {
		cfg.Job.Name = "classification"
	}
	if cfg.Job.BatchSize == 0 {
		cfg.Job.BatchSize = 10
	}
	if cfg.Job.MaxConcurrent == 0 {
		cfg.Job.MaxConcurrent = 5
	}
	if cfg.Job.PollInterval == 0 {
		cfg.Job.PollInterval = 60 * time.Second
	}
	if cfg.Job.StalledAfter == 0 {
		cfg.Job.StalledAfter = 30 * time.Minute
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
}
