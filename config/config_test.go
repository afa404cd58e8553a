package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitmate-app/splitmate-sync/logger"
)

func init() {
	logger.IsTest = true
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, "data/splitmate.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Sync.MaxUploadRetries)
	assert.Equal(t, 0, cfg.Sync.QueueBatchLimit)
	assert.Equal(t, 100, cfg.Sync.EventBufferSize)
	assert.Equal(t, 60*time.Second, cfg.Sync.ProcessInterval())
	assert.Equal(t, 5*time.Second, cfg.Sync.ProbeTimeout())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("SYNC_MAX_UPLOAD_RETRIES", "5")
	t.Setenv("FIRESTORE_PROJECT_ID", "splitmate-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Sync.MaxUploadRetries)
	assert.Equal(t, "splitmate-test", cfg.Firestore.ProjectID)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Environment: EnvDevelopment},
		Database: DatabaseConfig{Path: "data/test.db"},
		Sync: SyncConfig{
			MaxUploadRetries: 3,
			EventBufferSize:  100,
		},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantErr: "invalid environment",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database path is required",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Sync.MaxUploadRetries = 0 },
			wantErr: "max upload retries",
		},
		{
			name:    "negative batch limit",
			mutate:  func(c *Config) { c.Sync.QueueBatchLimit = -1 },
			wantErr: "queue batch limit",
		},
		{
			name: "production requires firestore project",
			mutate: func(c *Config) {
				c.Server.Environment = EnvProduction
			},
			wantErr: "firestore project id",
		},
		{
			name: "production requires sync user",
			mutate: func(c *Config) {
				c.Server.Environment = EnvProduction
				c.Firestore.ProjectID = "splitmate-prod"
			},
			wantErr: "sync user id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
