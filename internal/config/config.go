package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Events     EventsConfig     `mapstructure:"events"`
	JWTSecret  string           `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// MigrationsConfig points at the directory of role/permission migration files.
type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

type FiltersConfig struct {
	// Timezone used to resolve start/end of day in date range filters.
	Timezone string `mapstructure:"timezone"`
}

// EventsConfig controls the migration audit trail.
type EventsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	BufferSize      int           `mapstructure:"buffer_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.IsSQLite() {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Location resolves the configured filter timezone, falling back to UTC.
func (f FiltersConfig) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../..")

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "adminkit")
	v.SetDefault("database.password", "adminkit")
	v.SetDefault("database.name", "adminkit")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("migrations.dir", "./migrations")
	v.SetDefault("filters.timezone", "UTC")
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.buffer_size", 100)
	v.SetDefault("events.flush_interval", "2s")
	v.SetDefault("events.retention", "720h")
	v.SetDefault("events.cleanup_interval", "1h")
	v.SetDefault("jwt_secret", "changeme-secret")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
