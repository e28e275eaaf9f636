package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Report   ReportConfig   `mapstructure:"report"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AnalysisConfig defines how the external analysis service is reached
type AnalysisConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Path     string `mapstructure:"path"`
	Field    string `mapstructure:"field"`   // multipart form field carrying the video
	Timeout  string `mapstructure:"timeout"` // empty means no client-side timeout
}

// CameraConfig defines the self-monitoring camera source
type CameraConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Device  string `mapstructure:"device"`
}

// PlaybackConfig defines the local playback server and player
type PlaybackConfig struct {
	BindAddress   string   `mapstructure:"bind_address"`
	Port          int      `mapstructure:"port"` // 0 picks an ephemeral port
	Autoplay      bool     `mapstructure:"autoplay"`
	PlayerCommand []string `mapstructure:"player_command"`
}

// ReportConfig defines how analysis results are rendered
type ReportConfig struct {
	HeatmapCap int    `mapstructure:"heatmap_cap"`
	Format     string `mapstructure:"format"`
}

// StorageConfig defines the session history backend
type StorageConfig struct {
	Type      string      `mapstructure:"type"`
	CacheSize int         `mapstructure:"cache_size"`
	Bolt      BoltConfig  `mapstructure:"bolt"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// BoltConfig defines the local BoltDB history file
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	RecordTTL    string `mapstructure:"record_ttl"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load loads configuration from file and environment variables.
// An empty configPath skips the file and uses defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("ENGAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced by defaults alone.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Analysis service defaults
	v.SetDefault("analysis.endpoint", "http://localhost:5000")
	v.SetDefault("analysis.path", "/analyze")
	v.SetDefault("analysis.field", "video")
	v.SetDefault("analysis.timeout", "")

	// Camera defaults
	v.SetDefault("camera.enabled", true)
	v.SetDefault("camera.device", "/dev/video0")

	// Playback defaults
	v.SetDefault("playback.bind_address", "127.0.0.1")
	v.SetDefault("playback.port", 0)
	v.SetDefault("playback.autoplay", true)
	v.SetDefault("playback.player_command", []string{})

	// Report defaults
	v.SetDefault("report.heatmap_cap", 48)
	v.SetDefault("report.format", "text")

	// Storage defaults
	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.cache_size", 128)
	v.SetDefault("storage.bolt.path", defaultBoltPath())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.record_ttl", "2160h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Analysis.Endpoint == "" {
		return fmt.Errorf("analysis endpoint is required")
	}
	u, err := url.Parse(cfg.Analysis.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid analysis endpoint: %q", cfg.Analysis.Endpoint)
	}
	if cfg.Analysis.Field == "" {
		return fmt.Errorf("analysis field is required")
	}
	if cfg.Analysis.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Analysis.Timeout); err != nil {
			return fmt.Errorf("invalid analysis timeout: %w", err)
		}
	}

	if cfg.Playback.Port < 0 || cfg.Playback.Port > 65535 {
		return fmt.Errorf("invalid playback port: %d", cfg.Playback.Port)
	}

	if cfg.Report.HeatmapCap <= 0 {
		return fmt.Errorf("heatmap cap must be positive: %d", cfg.Report.HeatmapCap)
	}
	switch cfg.Report.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported report format: %s (text, json or yaml)", cfg.Report.Format)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "none"
	}
	switch cfg.Storage.Type {
	case "none", "memory", "redis":
	case "bolt":
		if cfg.Storage.Bolt.Path == "" {
			return fmt.Errorf("storage.bolt.path is required for bolt storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (none, memory, bolt or redis)", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "none" && cfg.Storage.CacheSize <= 0 {
		return fmt.Errorf("storage cache size must be positive: %d", cfg.Storage.CacheSize)
	}

	return nil
}

// defaultBoltPath places the history file in the user's data directory
func defaultBoltPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "engage", "history.db")
	}
	return "engage-history.db"
}

// AnalysisURL joins the configured endpoint and path.
func (c AnalysisConfig) AnalysisURL() string {
	return strings.TrimRight(c.Endpoint, "/") + "/" + strings.TrimLeft(c.Path, "/")
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
