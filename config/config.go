// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/splitmate-app/splitmate-sync/logger"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds process-level configuration.
type ServerConfig struct {
	Environment Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	MetricsPort string      `mapstructure:"METRICS_PORT" yaml:"metrics_port"`
	Version     string      `mapstructure:"VERSION" yaml:"version"`
}

// DatabaseConfig holds local SQLite store details.
type DatabaseConfig struct {
	Path          string `mapstructure:"PATH" yaml:"path"`
	BusyTimeoutMS int    `mapstructure:"BUSY_TIMEOUT_MS" yaml:"busy_timeout_ms"`
}

// FirestoreConfig holds remote document store connection details.
type FirestoreConfig struct {
	ProjectID       string `mapstructure:"PROJECT_ID" yaml:"project_id"`
	CredentialsFile string `mapstructure:"CREDENTIALS_FILE" yaml:"credentials_file"`
	// EmulatorHost, when set, routes the client at the local Firestore
	// emulator instead of production (used by integration tests).
	EmulatorHost string `mapstructure:"EMULATOR_HOST" yaml:"emulator_host"`
}

// SyncConfig holds tunables for the upload queue and realtime reconciliation.
type SyncConfig struct {
	// UserID is the account whose data this engine instance synchronizes.
	UserID string `mapstructure:"USER_ID" yaml:"user_id"`
	// Maximum retry attempts before an outbox entry goes dormant.
	MaxUploadRetries int `mapstructure:"MAX_UPLOAD_RETRIES" yaml:"max_upload_retries"`
	// Maximum outbox entries fetched per ProcessQueue pass (0 = no limit).
	QueueBatchLimit int `mapstructure:"QUEUE_BATCH_LIMIT" yaml:"queue_batch_limit"`
	// Interval between periodic queue drains.
	ProcessIntervalSeconds int `mapstructure:"PROCESS_INTERVAL_SECONDS" yaml:"process_interval_seconds"`
	// Buffer size for the channel delivering events to a single subscriber.
	EventBufferSize int `mapstructure:"EVENT_BUFFER_SIZE" yaml:"event_buffer_size"`
	// URL probed to determine connectivity.
	ProbeURL string `mapstructure:"PROBE_URL" yaml:"probe_url"`
	// Interval between connectivity probes.
	ProbeIntervalSeconds int `mapstructure:"PROBE_INTERVAL_SECONDS" yaml:"probe_interval_seconds"`
	// Timeout applied to each connectivity probe request.
	ProbeTimeoutSeconds int `mapstructure:"PROBE_TIMEOUT_SECONDS" yaml:"probe_timeout_seconds"`
}

// ProcessInterval returns the periodic drain interval as a duration.
func (c *SyncConfig) ProcessInterval() time.Duration {
	return time.Duration(c.ProcessIntervalSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe interval as a duration.
func (c *SyncConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c *SyncConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"DATABASE" yaml:"database"`
	Firestore FirestoreConfig `mapstructure:"FIRESTORE" yaml:"firestore"`
	Sync      SyncConfig      `mapstructure:"SYNC" yaml:"sync"`
	LogLevel  string          `mapstructure:"LOG_LEVEL" yaml:"log_level"`
}

// LoadConfig reads configuration from the environment, applies defaults and
// validates the result.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.METRICS_PORT", "9091")
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("DATABASE.PATH", "data/splitmate.db")
	v.SetDefault("DATABASE.BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("FIRESTORE.PROJECT_ID", "")
	v.SetDefault("FIRESTORE.CREDENTIALS_FILE", "")
	v.SetDefault("FIRESTORE.EMULATOR_HOST", "")
	v.SetDefault("SYNC.USER_ID", "")
	v.SetDefault("SYNC.MAX_UPLOAD_RETRIES", 3)
	v.SetDefault("SYNC.QUEUE_BATCH_LIMIT", 0)
	v.SetDefault("SYNC.PROCESS_INTERVAL_SECONDS", 60)
	v.SetDefault("SYNC.EVENT_BUFFER_SIZE", 100)
	v.SetDefault("SYNC.PROBE_URL", "https://firestore.googleapis.com")
	v.SetDefault("SYNC.PROBE_INTERVAL_SECONDS", 30)
	v.SetDefault("SYNC.PROBE_TIMEOUT_SECONDS", 5)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables
	envBindings := [][2]string{
		{"SERVER.ENVIRONMENT", "ENVIRONMENT"},
		{"SERVER.METRICS_PORT", "METRICS_PORT"},
		{"SERVER.VERSION", "VERSION"},
		{"DATABASE.PATH", "DB_PATH"},
		{"DATABASE.BUSY_TIMEOUT_MS", "DB_BUSY_TIMEOUT_MS"},
		{"FIRESTORE.PROJECT_ID", "FIRESTORE_PROJECT_ID"},
		{"FIRESTORE.CREDENTIALS_FILE", "FIRESTORE_CREDENTIALS_FILE"},
		{"FIRESTORE.EMULATOR_HOST", "FIRESTORE_EMULATOR_HOST"},
		{"SYNC.USER_ID", "SYNC_USER_ID"},
		{"SYNC.MAX_UPLOAD_RETRIES", "SYNC_MAX_UPLOAD_RETRIES"},
		{"SYNC.QUEUE_BATCH_LIMIT", "SYNC_QUEUE_BATCH_LIMIT"},
		{"SYNC.PROCESS_INTERVAL_SECONDS", "SYNC_PROCESS_INTERVAL_SECONDS"},
		{"SYNC.EVENT_BUFFER_SIZE", "SYNC_EVENT_BUFFER_SIZE"},
		{"SYNC.PROBE_URL", "SYNC_PROBE_URL"},
		{"SYNC.PROBE_INTERVAL_SECONDS", "SYNC_PROBE_INTERVAL_SECONDS"},
		{"SYNC.PROBE_TIMEOUT_SECONDS", "SYNC_PROBE_TIMEOUT_SECONDS"},
		{"LOG_LEVEL", "LOG_LEVEL"},
	}

	for _, binding := range envBindings {
		if err := v.BindEnv(binding[0], binding[1]); err != nil {
			return nil, fmt.Errorf("failed to bind env var %s: %w", binding[1], err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"databasePath", cfg.Database.Path,
		"firestoreProject", logger.MaskSensitiveString(cfg.Firestore.ProjectID, 3, 2),
		"logLevel", cfg.LogLevel,
	)

	return &cfg, nil
}

// Validate checks the configuration for impossible or unsafe values.
func (c *Config) Validate() error {
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %s", c.Server.Environment)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Sync.MaxUploadRetries < 1 {
		return fmt.Errorf("sync max upload retries must be at least 1, got %d", c.Sync.MaxUploadRetries)
	}
	if c.Sync.QueueBatchLimit < 0 {
		return fmt.Errorf("sync queue batch limit must not be negative, got %d", c.Sync.QueueBatchLimit)
	}
	if c.Sync.EventBufferSize < 1 {
		return fmt.Errorf("sync event buffer size must be at least 1, got %d", c.Sync.EventBufferSize)
	}
	if c.Server.Environment == EnvProduction && c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore project id is required in production")
	}
	if c.Server.Environment == EnvProduction && c.Sync.UserID == "" {
		return fmt.Errorf("sync user id is required in production")
	}
	return nil
}
