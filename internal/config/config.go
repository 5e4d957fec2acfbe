// Package config provides configuration management for streamgate using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort            = 3000
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultStreamDir             = "/tmp"
	defaultMinSegmentSeconds     = 4
	defaultMaxSegmentSeconds     = 10
	defaultTargetPerSegment      = 10
	defaultMaxStreamStorage      = int64(2_000_000_000)
	defaultKeepSegments          = 5
	defaultSegmentMonitorPeriod  = 5 * time.Second
	defaultResourceWatchPeriod   = 15 * time.Second
	defaultReadinessPollPeriod   = time.Second
	defaultRetentionPeriod       = 15 * time.Second
	defaultMetadataTimeout       = 2 * time.Minute
	defaultDrainTimeout          = 5 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Torrent   TorrentConfig   `mapstructure:"torrent"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig holds per-session disk budget configuration.
type StorageConfig struct {
	// StreamDir is the directory under which each session gets its own folder.
	StreamDir string `mapstructure:"stream_dir"`
	// MaxStreamStorageBytes is the rolling-window disk budget per session.
	MaxStreamStorageBytes int64 `mapstructure:"max_stream_storage_bytes"`
	// KeepSegments is the number of newest segments protected from retention.
	KeepSegments int `mapstructure:"keep_segments"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// TranscodeConfig holds transcoder tuning configuration.
// MaxConcurrent and Threads of 0 mean "computed from detected resources".
type TranscodeConfig struct {
	FFmpegPath       string `mapstructure:"ffmpeg_path"`     // empty = find on PATH
	FFprobePath      string `mapstructure:"ffprobe_path"`    // empty = find on PATH
	DownloaderPath   string `mapstructure:"downloader_path"` // empty = find yt-dlp on PATH
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
	Threads          int    `mapstructure:"threads"`
	MinSegmentSecs   int    `mapstructure:"min_segment_seconds"`
	MaxSegmentSecs   int    `mapstructure:"max_segment_seconds"`
	TargetPerSegment int    `mapstructure:"target_streams_per_segment"`
}

// TorrentConfig holds torrent engine configuration.
type TorrentConfig struct {
	// DataDir is where the torrent client stores piece data.
	DataDir string `mapstructure:"data_dir"`
	// MetadataTimeout bounds how long magnet metadata resolution may take.
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	// MaxConns is the established connection cap per torrent.
	MaxConns int `mapstructure:"max_conns"`
}

// MonitorConfig holds polling cadences for the output supervisor and
// resource probe.
type MonitorConfig struct {
	SegmentMonitorInterval time.Duration `mapstructure:"segment_monitor_interval"`
	ResourceWatchInterval  time.Duration `mapstructure:"resource_watch_interval"`
	ReadinessPollInterval  time.Duration `mapstructure:"readiness_poll_interval"`
	RetentionInterval      time.Duration `mapstructure:"retention_interval"`
}

// Load reads configuration from the given file path (or default locations
// when empty) plus environment variables, and returns a validated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/streamgate")
		v.SetConfigType("yaml")
		v.SetConfigName(".streamgate")
	}

	v.SetEnvPrefix("STREAMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	applyMillisEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", 0) // streaming responses must not time out
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.drain_timeout", defaultDrainTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("storage.stream_dir", defaultStreamDir)
	v.SetDefault("storage.max_stream_storage_bytes", defaultMaxStreamStorage)
	v.SetDefault("storage.keep_segments", defaultKeepSegments)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("transcode.ffmpeg_path", "")
	v.SetDefault("transcode.ffprobe_path", "")
	v.SetDefault("transcode.downloader_path", "")
	v.SetDefault("transcode.max_concurrent", 0)
	v.SetDefault("transcode.threads", 0)
	v.SetDefault("transcode.min_segment_seconds", defaultMinSegmentSeconds)
	v.SetDefault("transcode.max_segment_seconds", defaultMaxSegmentSeconds)
	v.SetDefault("transcode.target_streams_per_segment", defaultTargetPerSegment)

	v.SetDefault("torrent.data_dir", "")
	v.SetDefault("torrent.metadata_timeout", defaultMetadataTimeout)
	v.SetDefault("torrent.max_conns", 35)

	v.SetDefault("monitor.segment_monitor_interval", defaultSegmentMonitorPeriod)
	v.SetDefault("monitor.resource_watch_interval", defaultResourceWatchPeriod)
	v.SetDefault("monitor.readiness_poll_interval", defaultReadinessPollPeriod)
	v.SetDefault("monitor.retention_interval", defaultRetentionPeriod)
}

// bindLegacyEnv binds the short-form environment variables used by existing
// deployments. These win over config-file values but lose to the prefixed
// STREAMGATE_* forms.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "STREAMGATE_SERVER_PORT", "PORT")
	_ = v.BindEnv("transcode.min_segment_seconds", "STREAMGATE_TRANSCODE_MIN_SEGMENT_SECONDS", "MIN_SEGMENT_SECONDS")
	_ = v.BindEnv("transcode.max_segment_seconds", "STREAMGATE_TRANSCODE_MAX_SEGMENT_SECONDS", "MAX_SEGMENT_SECONDS")
	_ = v.BindEnv("transcode.target_streams_per_segment", "STREAMGATE_TRANSCODE_TARGET_STREAMS_PER_SEGMENT", "TARGET_STREAMS_PER_SEGMENT")
	_ = v.BindEnv("transcode.max_concurrent", "STREAMGATE_TRANSCODE_MAX_CONCURRENT", "MAX_CONCURRENT_FFMPEG")
	_ = v.BindEnv("transcode.threads", "STREAMGATE_TRANSCODE_THREADS", "FFMPEG_THREADS")
	_ = v.BindEnv("storage.max_stream_storage_bytes", "STREAMGATE_STORAGE_MAX_STREAM_STORAGE_BYTES", "MAX_STREAM_STORAGE_BYTES")
	_ = v.BindEnv("storage.keep_segments", "STREAMGATE_STORAGE_KEEP_SEGMENTS", "KEEP_SEGMENTS")
}

// applyMillisEnv applies the millisecond-valued override variables. They are
// plain integers rather than Go duration strings, so they bypass viper's
// duration decoding.
func applyMillisEnv(cfg *Config) {
	if ms, ok := millisEnv("SEGMENT_MONITOR_INTERVAL_MS"); ok {
		cfg.Monitor.SegmentMonitorInterval = ms
	}
	if ms, ok := millisEnv("RESOURCE_WATCH_INTERVAL_MS"); ok {
		cfg.Monitor.ResourceWatchInterval = ms
	}
}

func millisEnv(name string) (time.Duration, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.StreamDir == "" {
		return errors.New("storage.stream_dir must not be empty")
	}
	if c.Storage.MaxStreamStorageBytes <= 0 {
		return fmt.Errorf("storage.max_stream_storage_bytes must be positive, got %d", c.Storage.MaxStreamStorageBytes)
	}
	if c.Storage.KeepSegments < 1 {
		return fmt.Errorf("storage.keep_segments must be at least 1, got %d", c.Storage.KeepSegments)
	}
	if c.Transcode.MinSegmentSecs < 1 {
		return fmt.Errorf("transcode.min_segment_seconds must be at least 1, got %d", c.Transcode.MinSegmentSecs)
	}
	if c.Transcode.MaxSegmentSecs < c.Transcode.MinSegmentSecs {
		return fmt.Errorf("transcode.max_segment_seconds %d below min_segment_seconds %d",
			c.Transcode.MaxSegmentSecs, c.Transcode.MinSegmentSecs)
	}
	if c.Transcode.TargetPerSegment < 1 {
		return fmt.Errorf("transcode.target_streams_per_segment must be at least 1, got %d", c.Transcode.TargetPerSegment)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q invalid", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q invalid", c.Logging.Format)
	}
	return nil
}
