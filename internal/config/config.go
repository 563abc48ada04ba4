// Package config loads the worker process configuration from an optional
// JSON file with environment-variable overrides. Environment wins.
package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Environment variable names.
const (
	EnvDatabaseURL       = "FUJIGLIDE_DB_URL"
	EnvQueueHost         = "FUJIGLIDE_QUEUE_HOST"
	EnvQueuePort         = "FUJIGLIDE_QUEUE_PORT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvWorkerConcurrency = "FUJIGLIDE_WORKER_CONCURRENCY"
	EnvSchedulerOnly     = "FUJIGLIDE_SCHEDULER_ONLY"
)

// Config is the complete worker process configuration.
type Config struct {
	// DatabaseURL is the relational store connection string.
	DatabaseURL string `json:"database_url"`

	// QueueHost / QueuePort override the host and port of the queue's
	// backing store. Empty means the queue shares DatabaseURL.
	QueueHost string `json:"queue_host"`
	QueuePort int    `json:"queue_port"`

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// WorkerConcurrency seeds the worker_concurrency setting on first run.
	WorkerConcurrency int `json:"worker_concurrency"`

	// SchedulerOnly disables the worker role: the process only schedules.
	SchedulerOnly bool `json:"scheduler_only"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		DatabaseURL:       "postgres://localhost:5432/fujiglide?sslmode=disable",
		LogLevel:          "info",
		WorkerConcurrency: 1,
	}
}

// Load reads the optional JSON file at path (empty path skips the file),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("database URL is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvQueueHost); v != "" {
		cfg.QueueHost = v
	}
	if v := os.Getenv(EnvQueuePort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.QueuePort = p
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvWorkerConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerConcurrency = n
		}
	}
	if v := os.Getenv(EnvSchedulerOnly); v != "" {
		cfg.SchedulerOnly = v == "1" || v == "true" || v == "yes"
	}
}

// QueueURL returns the connection string for the queue's backing store:
// DatabaseURL with the host/port overrides applied when set.
func (c Config) QueueURL() (string, error) {
	if c.QueueHost == "" && c.QueuePort == 0 {
		return c.DatabaseURL, nil
	}

	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse database URL")
	}

	host := u.Hostname()
	port := u.Port()
	if c.QueueHost != "" {
		host = c.QueueHost
	}
	if c.QueuePort != 0 {
		port = strconv.Itoa(c.QueuePort)
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	return u.String(), nil
}
