package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the vigil service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Detection  DetectionConfig  `mapstructure:"detection"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OpenSearchConfig holds the search store connection settings
type OpenSearchConfig struct {
	URL        string `mapstructure:"url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Insecure   bool   `mapstructure:"insecure"`
	LogsPrefix string `mapstructure:"logs_prefix"`
	AlertIndex string `mapstructure:"alert_index"`
}

// DatabaseConfig holds PostgreSQL connection settings for the ledger
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx-compatible connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the upload counter
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// IngestConfig holds upload handling settings
type IngestConfig struct {
	UploadDir   string `mapstructure:"upload_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
	SourceTag   string `mapstructure:"source_tag"`
}

// DetectionConfig holds the brute-force rule parameters
type DetectionConfig struct {
	Lookback  time.Duration `mapstructure:"lookback"`
	Threshold int           `mapstructure:"threshold"`
	TopIPs    int           `mapstructure:"top_ips"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("opensearch.url", "http://opensearch:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.logs_prefix", "security-logs")
	v.SetDefault("opensearch.alert_index", "security-alerts")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "vigil")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "vigil")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)

	v.SetDefault("ingest.upload_dir", "/logs")
	v.SetDefault("ingest.max_upload_mb", 100)
	v.SetDefault("ingest.source_tag", "webapp")

	v.SetDefault("detection.lookback", 30*24*time.Hour)
	v.SetDefault("detection.threshold", 5)
	v.SetDefault("detection.top_ips", 50)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config: nested keys map to
	// underscores, e.g. VIGIL_DETECTION_THRESHOLD.
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
