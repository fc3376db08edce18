package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   = "configs/config.yaml"
	DefaultBusinessPath = "configs/business.yaml"
	defaultDatabasePath = "data/slotbook.db"
)

type Config struct {
	Engine struct {
		GranularityMinutes int    `yaml:"granularity_minutes" validate:"gte=0,lte=1440"`
		MaxConcurrency     int    `yaml:"max_concurrency" validate:"gte=0"`
		Timezone           string `yaml:"timezone"`
	} `yaml:"engine"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours" validate:"gte=0"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db" validate:"gte=0"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"gte=0"`
	} `yaml:"redis"`

	HTTP struct {
		Address               string  `yaml:"address"`
		RateLimitRPS          float64 `yaml:"rate_limit_rps" validate:"gte=0"`
		RateLimitBurst        int     `yaml:"rate_limit_burst" validate:"gte=0"`
		RequestTimeoutSeconds int     `yaml:"request_timeout_seconds" validate:"gte=0"`
	} `yaml:"http"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Booking struct {
		MinAdvanceMinutes int `yaml:"min_advance_minutes" validate:"gte=0"`
		MaxAdvanceDays    int `yaml:"max_advance_days" validate:"gte=0"`
	} `yaml:"booking"`

	BusinessConfigPath    string `yaml:"business_config_path"`
	ReloadIntervalSeconds int    `yaml:"reload_interval_seconds" validate:"gte=0"`
}

// Load reads the YAML config at path. A .env file in the working directory,
// when present, is loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err = validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Engine.Timezone != "" {
		if _, err = time.LoadLocation(cfg.Engine.Timezone); err != nil {
			return nil, fmt.Errorf("engine.timezone: %w", err)
		}
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDatabasePath
	}
	if cfg.BusinessConfigPath == "" {
		cfg.BusinessConfigPath = DefaultBusinessPath
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Granularity is the slot step in minutes.
func (c *Config) Granularity() int {
	if c.Engine.GranularityMinutes <= 0 {
		return 30
	}
	return c.Engine.GranularityMinutes
}

// Location is the timezone business dates and clock times are interpreted in.
func (c *Config) Location() *time.Location {
	if c.Engine.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// CacheTTL is zero when the redis cache is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) ReloadInterval() time.Duration {
	if c.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ReloadIntervalSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTP.RequestTimeoutSeconds) * time.Second
}

// LoadBusiness loads the business seed file referenced by the config.
func (c *Config) LoadBusiness() (*BusinessFile, error) {
	return LoadBusinessConfig(c.BusinessConfigPath)
}
