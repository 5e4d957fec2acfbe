package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "/tmp", cfg.Storage.StreamDir)
	assert.Equal(t, int64(2_000_000_000), cfg.Storage.MaxStreamStorageBytes)
	assert.Equal(t, 5, cfg.Storage.KeepSegments)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 4, cfg.Transcode.MinSegmentSecs)
	assert.Equal(t, 10, cfg.Transcode.MaxSegmentSecs)
	assert.Equal(t, 10, cfg.Transcode.TargetPerSegment)
	assert.Zero(t, cfg.Transcode.MaxConcurrent)
	assert.Zero(t, cfg.Transcode.Threads)

	assert.Equal(t, 5*time.Second, cfg.Monitor.SegmentMonitorInterval)
	assert.Equal(t, 15*time.Second, cfg.Monitor.ResourceWatchInterval)
	assert.Equal(t, time.Second, cfg.Monitor.ReadinessPollInterval)
	assert.Equal(t, 15*time.Second, cfg.Monitor.RetentionInterval)
}

func TestLoad_LegacyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("MIN_SEGMENT_SECONDS", "6")
	t.Setenv("MAX_STREAM_STORAGE_BYTES", "10000000")
	t.Setenv("KEEP_SEGMENTS", "3")
	t.Setenv("SEGMENT_MONITOR_INTERVAL_MS", "2500")
	t.Setenv("RESOURCE_WATCH_INTERVAL_MS", "30000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Transcode.MinSegmentSecs)
	assert.Equal(t, int64(10_000_000), cfg.Storage.MaxStreamStorageBytes)
	assert.Equal(t, 3, cfg.Storage.KeepSegments)
	assert.Equal(t, 2500*time.Millisecond, cfg.Monitor.SegmentMonitorInterval)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ResourceWatchInterval)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty stream dir", func(c *Config) { c.Storage.StreamDir = "" }, "stream_dir"},
		{"zero budget", func(c *Config) { c.Storage.MaxStreamStorageBytes = 0 }, "max_stream_storage_bytes"},
		{"zero keep", func(c *Config) { c.Storage.KeepSegments = 0 }, "keep_segments"},
		{"seg bounds inverted", func(c *Config) { c.Transcode.MaxSegmentSecs = 2 }, "max_segment_seconds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
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
