package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. Values come from a YAML
// file and/or environment variables (GARNIZON_SERVER_ADDRESS and so on).
type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		DSN          string `mapstructure:"dsn"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"database"`

	Auth struct {
		// Secret signs access and refresh tokens (HS256).
		Secret string `mapstructure:"secret"`
		// Pepper is mixed into password hashing input server-side.
		Pepper     string        `mapstructure:"pepper"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"auth"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error
		Format string `mapstructure:"format"` // text|json
	} `mapstructure:"logging"`

	RateLimit struct {
		Burst     int `mapstructure:"burst"`
		PerSecond int `mapstructure:"per_second"`
	} `mapstructure:"rate_limit"`
}

// Load reads configuration from env and an optional config file, applying
// defaults for everything except the secrets.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("garnizon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("auth.access_ttl", 30*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.per_second", 10)

	if cfgFile := os.Getenv("GARNIZON_CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "garnizon"))
		}
		v.AddConfigPath("/etc/garnizon")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error, for use in main.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret must be set")
	}
	if strings.TrimSpace(c.Auth.Pepper) == "" {
		return errors.New("auth.pepper must be set")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth token TTLs must be positive")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	return nil
}
