package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`
	PrefsPath   string `yaml:"prefs_path"`
	CatalogPath string `yaml:"catalog_path"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`

	RepeatInitialDelay time.Duration `yaml:"repeat_initial_delay"`
	RepeatInterval     time.Duration `yaml:"repeat_interval"`
	RepeatMaxHold      time.Duration `yaml:"repeat_max_hold"`
	ReconcileQueue     int           `yaml:"reconcile_queue"`

	NATSURL string `yaml:"nats_url"`

	ExportS3Bucket    string `yaml:"export_s3_bucket"`
	ExportS3Region    string `yaml:"export_s3_region"`
	ExportS3Endpoint  string `yaml:"export_s3_endpoint"`
	ExportS3PathStyle bool   `yaml:"export_s3_path_style"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:         ":8080",
		DBDriver:           "sqlite",
		DBPath:             "/data/pullsheet.db",
		PrefsPath:          "/data/prefs",
		LogLevel:           "info",
		RepeatInitialDelay: 350 * time.Millisecond,
		RepeatInterval:     90 * time.Millisecond,
		RepeatMaxHold:      30 * time.Second,
		ReconcileQueue:     256,
		ExportS3Region:     "us-east-1",
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() *Config {
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile overlays a YAML file on the defaults, then applies environment
// variables, which always win. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.PrefsPath = getEnv("PREFS_PATH", cfg.PrefsPath)
	cfg.CatalogPath = getEnv("CATALOG_PATH", cfg.CatalogPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.RepeatInitialDelay = getDuration("REPEAT_INITIAL_DELAY", cfg.RepeatInitialDelay)
	cfg.RepeatInterval = getDuration("REPEAT_INTERVAL", cfg.RepeatInterval)
	cfg.RepeatMaxHold = getDuration("REPEAT_MAX_HOLD", cfg.RepeatMaxHold)
	cfg.ReconcileQueue = getInt("RECONCILE_QUEUE", cfg.ReconcileQueue)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.ExportS3Bucket = getEnv("EXPORT_S3_BUCKET", cfg.ExportS3Bucket)
	cfg.ExportS3Region = getEnv("EXPORT_S3_REGION", cfg.ExportS3Region)
	cfg.ExportS3Endpoint = getEnv("EXPORT_S3_ENDPOINT", cfg.ExportS3Endpoint)
	cfg.ExportS3PathStyle = getEnv("EXPORT_S3_PATH_STYLE", strconv.FormatBool(cfg.ExportS3PathStyle)) == "true"
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.RepeatInitialDelay <= 0 || c.RepeatInterval <= 0 {
		return fmt.Errorf("repeat delay and interval must be positive")
	}
	if c.RepeatMaxHold < 0 {
		return fmt.Errorf("repeat max hold must not be negative")
	}
	if c.ReconcileQueue <= 0 {
		return fmt.Errorf("reconcile queue size must be positive")
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
