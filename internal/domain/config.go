package domain

import (
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DaemonID string       `json:"daemon_id" yaml:"daemon_id"`
	DataDir  string       `json:"data_dir" yaml:"data_dir"`
	SpecDir  string       `json:"spec_dir" yaml:"spec_dir"`
	Logger   *slog.Logger `json:"-" yaml:"-"`

	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Retry     RetryConfig     `json:"retry" yaml:"retry"`
	Backend   BackendConfig   `json:"backend" yaml:"backend"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	WorkerCount  int           `json:"worker_count" yaml:"worker_count"`
	ClaimBatch   int           `json:"claim_batch" yaml:"claim_batch"`
	LeaseTTL     time.Duration `json:"lease_ttl" yaml:"lease_ttl"`
}

type RetryConfig struct {
	// DefaultBudget applies when a node's child_config carries no
	// max_retries of its own.
	DefaultBudget int `json:"default_budget" yaml:"default_budget"`
}

type BackendConfig struct {
	Name    string        `json:"name" yaml:"name"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// UnmarshalYAML accepts human-readable durations ("2s", "500ms") and leaves
// fields absent from the document at their current values, so a partial
// config file layers over the defaults.
func (s *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PollInterval *string `yaml:"poll_interval"`
		WorkerCount  *int    `yaml:"worker_count"`
		ClaimBatch   *int    `yaml:"claim_batch"`
		LeaseTTL     *string `yaml:"lease_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.PollInterval != nil {
		d, err := time.ParseDuration(*raw.PollInterval)
		if err != nil {
			return WrapConfigError("scheduler.poll_interval", err)
		}
		s.PollInterval = d
	}
	if raw.WorkerCount != nil {
		s.WorkerCount = *raw.WorkerCount
	}
	if raw.ClaimBatch != nil {
		s.ClaimBatch = *raw.ClaimBatch
	}
	if raw.LeaseTTL != nil {
		d, err := time.ParseDuration(*raw.LeaseTTL)
		if err != nil {
			return WrapConfigError("scheduler.lease_ttl", err)
		}
		s.LeaseTTL = d
	}
	return nil
}

func (b *BackendConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name    *string `yaml:"name"`
		Timeout *string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Name != nil {
		b.Name = *raw.Name
	}
	if raw.Timeout != nil {
		d, err := time.ParseDuration(*raw.Timeout)
		if err != nil {
			return WrapConfigError("backend.timeout", err)
		}
		b.Timeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return NewConfigError("data_dir is required")
	}
	if c.Scheduler.PollInterval <= 0 {
		return NewConfigError("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.WorkerCount <= 0 {
		return NewConfigError("scheduler.worker_count must be positive")
	}
	if c.Scheduler.ClaimBatch <= 0 {
		return NewConfigError("scheduler.claim_batch must be positive")
	}
	if c.Scheduler.LeaseTTL < c.Scheduler.PollInterval {
		return NewConfigError("scheduler.lease_ttl must be at least the poll interval")
	}
	if c.Retry.DefaultBudget < 0 {
		return NewConfigError("retry.default_budget cannot be negative")
	}
	return nil
}
