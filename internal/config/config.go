// Package config loads gospool configuration from defaults, an optional
// YAML file, GOSPOOL_* environment variables and runtime overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/3leaps/gospool/pkg/jobrecord"
	"github.com/3leaps/gospool/pkg/source"
)

// Completion tracking strategies.
const (
	StrategyPoll = "poll"
	StrategyLog  = "log"
)

// Config is the decoded configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Spool    SpoolConfig    `mapstructure:"spool"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Store    StoreConfig    `mapstructure:"store"`
	Printers PrintersConfig `mapstructure:"printers"`
	Batches  BatchesConfig  `mapstructure:"batches"`
	Source   SourceConfig   `mapstructure:"source"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// SpoolConfig configures the spooler commands and completion tracking.
type SpoolConfig struct {
	Binary       string        `mapstructure:"binary"`
	StatusBinary string        `mapstructure:"status_binary"`
	Strategy     string        `mapstructure:"strategy"`
	LogPath      string        `mapstructure:"log_path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollAttempts int           `mapstructure:"poll_attempts"`
	WatchTimeout time.Duration `mapstructure:"watch_timeout"`

	// SubmitRate limits submissions per second. Zero disables limiting.
	SubmitRate float64 `mapstructure:"submit_rate"`
}

type PoolConfig struct {
	MinWorkers int           `mapstructure:"min_workers"`
	MaxWorkers int           `mapstructure:"max_workers"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	KeepAlive  time.Duration `mapstructure:"keep_alive"`
}

// StoreConfig selects the job record database. URL wins over Path.
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// JobRecord converts to the store package configuration.
func (s StoreConfig) JobRecord() jobrecord.Config {
	return jobrecord.Config{Path: s.Path, URL: s.URL, AuthToken: s.AuthToken}
}

type PrintersConfig struct {
	Catalog string `mapstructure:"catalog"`
}

type BatchesConfig struct {
	Root string `mapstructure:"root"`
}

type SourceConfig struct {
	// WorkDir receives converted and downloaded documents.
	WorkDir string          `mapstructure:"work_dir"`
	S3      source.S3Config `mapstructure:"s3"`
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	var errs []error
	switch c.Spool.Strategy {
	case StrategyPoll, StrategyLog:
	default:
		errs = append(errs, fmt.Errorf("spool.strategy must be %q or %q, got %q", StrategyPoll, StrategyLog, c.Spool.Strategy))
	}
	if c.Spool.Binary == "" {
		errs = append(errs, errors.New("spool.binary is required"))
	}
	if c.Spool.SubmitRate < 0 {
		errs = append(errs, errors.New("spool.submit_rate must not be negative"))
	}
	if c.Pool.MinWorkers < 1 {
		errs = append(errs, errors.New("pool.min_workers must be at least 1"))
	}
	if c.Pool.MaxWorkers < c.Pool.MinWorkers {
		errs = append(errs, fmt.Errorf("pool.max_workers (%d) is below pool.min_workers (%d)", c.Pool.MaxWorkers, c.Pool.MinWorkers))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if err := c.Source.S3.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// dataPath joins name onto the data dir.
func dataPath(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}
