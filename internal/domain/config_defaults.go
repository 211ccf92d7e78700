package domain

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

func DefaultConfig() *Config {
	return &Config{
		DaemonID:  uuid.New().String(),
		Logger:    slog.Default(),
		Scheduler: DefaultSchedulerConfig(),
		Retry:     RetryConfig{DefaultBudget: 2},
		Backend:   BackendConfig{Name: "local", Timeout: 30 * time.Second},
	}
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval: 2 * time.Second,
		WorkerCount:  8,
		ClaimBatch:   16,
		LeaseTTL:     60 * time.Second,
	}
}

// LoadConfig reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapConfigError("reading config file "+path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, WrapConfigError("parsing config file "+path, err)
	}
	if cfg.DaemonID == "" {
		cfg.DaemonID = uuid.New().String()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg, cfg.Validate()
}
