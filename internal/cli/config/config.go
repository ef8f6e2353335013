package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the ddlctl configuration
type Config struct {
	Manifest   string         `mapstructure:"manifest"`
	CheckFirst bool           `mapstructure:"checkfirst"`
	Database   DatabaseConfig `mapstructure:"database"`
	Notify     NotifyConfig   `mapstructure:"notify"`
	History    HistoryConfig  `mapstructure:"history"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
	// Driver is a database/sql driver name or "pgx-native"; inferred from
	// the URL when empty
	Driver string `mapstructure:"driver"`
	// Backend overrides the dialect derived from the driver
	Backend          string        `mapstructure:"backend"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// NotifyConfig configures the Redis publisher
type NotifyConfig struct {
	RedisURL   string `mapstructure:"redis_url"`
	Channel    string `mapstructure:"channel"`
	Stream     string `mapstructure:"stream"`
	BestEffort bool   `mapstructure:"best_effort"`
}

// HistoryConfig configures the ddl_history table
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Table   string `mapstructure:"table"`
}

// ErrNoDatabase is returned when no database URL is configured
var ErrNoDatabase = errors.New("database url not set (use --database-url, database.url or DATABASE_URL)")

// Load loads the configuration from path, or from ddlctl.yml / ddlctl.yaml
// in the working directory when path is empty. DDLCTL_ environment
// variables override file values, e.g. DDLCTL_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults; every key needs one for environment overrides to apply
	v.SetDefault("manifest", "schema.yml")
	v.SetDefault("checkfirst", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.backend", "")
	v.SetDefault("database.statement_timeout", "0s")
	v.SetDefault("notify.redis_url", "")
	v.SetDefault("notify.channel", "ddl:events")
	v.SetDefault("notify.stream", "ddl:log")
	v.SetDefault("notify.best_effort", true)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.table", "ddl_history")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ddlctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DDLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Database.StatementTimeout < 0 {
		return fmt.Errorf("database.statement_timeout must not be negative, got: %s", cfg.Database.StatementTimeout)
	}
	if cfg.History.Enabled && cfg.History.Table == "" {
		return fmt.Errorf("history.table must be set when history is enabled")
	}
	return nil
}

// Connection resolves the driver name and data source name to open
func (d DatabaseConfig) Connection() (driver, dsn string, err error) {
	if d.URL == "" {
		return "", "", ErrNoDatabase
	}
	driver = d.Driver
	if driver == "" {
		if driver, err = InferDriver(d.URL); err != nil {
			return "", "", err
		}
	}
	dsn = d.URL
	if driver == "sqlite3" {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	return driver, dsn, nil
}

// InferDriver picks a driver from a database URL
func InferDriver(url string) (string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"),
		url == ":memory:", strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return "sqlite3", nil
	}
	return "", fmt.Errorf("cannot infer a driver for %q; set database.driver", url)
}
