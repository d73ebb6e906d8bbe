package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 350*time.Millisecond, cfg.RepeatInitialDelay)
	assert.Equal(t, 90*time.Millisecond, cfg.RepeatInterval)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("REPEAT_INTERVAL", "120ms")
	t.Setenv("RECONCILE_QUEUE", "8")
	t.Setenv("EXPORT_S3_PATH_STYLE", "true")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, 120*time.Millisecond, cfg.RepeatInterval)
	assert.Equal(t, 8, cfg.ReconcileQueue)
	assert.True(t, cfg.ExportS3PathStyle)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("REPEAT_INITIAL_DELAY", "soon")
	t.Setenv("RECONCILE_QUEUE", "lots")

	cfg := Load()

	assert.Equal(t, 350*time.Millisecond, cfg.RepeatInitialDelay)
	assert.Equal(t, 256, cfg.ReconcileQueue)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pullsheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":7000"
db_driver: postgres
database_url: postgres://localhost/pullsheet
repeat_initial_delay: 500ms
nats_url: nats://localhost:4222
`), 0600))
	t.Setenv("LISTEN_ADDR", ":7001")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.ListenAddr, "environment wins over file")
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/pullsheet", cfg.DSN())
	assert.Equal(t, 500*time.Millisecond, cfg.RepeatInitialDelay)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.DBDriver = "postgres" }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.RepeatInterval = 0 }, wantErr: true},
		{name: "negative max hold", mutate: func(c *Config) { c.RepeatMaxHold = -time.Second }, wantErr: true},
		{name: "max hold disabled", mutate: func(c *Config) { c.RepeatMaxHold = 0 }},
		{name: "empty queue", mutate: func(c *Config) { c.ReconcileQueue = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
