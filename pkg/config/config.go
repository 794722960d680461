package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Store struct {
		Type     string `yaml:"type"` // redis or postgres
		Postgres struct {
			DSN          string        `yaml:"dsn"`
			MaxOpenConns int           `yaml:"max_open_conns"`
			MaxIdleConns int           `yaml:"max_idle_conns"`
			ConnLifetime time.Duration `yaml:"conn_lifetime"`
		} `yaml:"postgres"`
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		MemoryMaxSize int `yaml:"memory_max_size"`
	} `yaml:"store"`
	KIS struct {
		BaseURL     string        `yaml:"base_url"`
		AppKey      string        `yaml:"app_key"`
		AppSecret   string        `yaml:"app_secret"`
		Timeout     time.Duration `yaml:"timeout"`
		TokenMargin time.Duration `yaml:"token_margin"` // subtracted from provider TTL
	} `yaml:"kis"`
	Market struct {
		OpenMinute  int `yaml:"open_minute"`  // minutes from midnight KST
		CloseMinute int `yaml:"close_minute"` // exclusive
	} `yaml:"market"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Credentials normally arrive this way so the YAML stays committable.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KIS_APP_KEY"); v != "" {
		c.KIS.AppKey = v
	}
	if v := os.Getenv("KIS_APP_SECRET"); v != "" {
		c.KIS.AppSecret = v
	}
	if v := os.Getenv("KIS_BASE_URL"); v != "" {
		c.KIS.BaseURL = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Store.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Store.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.KIS.Timeout == 0 {
		c.KIS.Timeout = 10 * time.Second
	}
	if c.KIS.TokenMargin == 0 {
		c.KIS.TokenMargin = time.Hour
	}
	if c.Market.OpenMinute == 0 {
		c.Market.OpenMinute = 9 * 60
	}
	if c.Market.CloseMinute == 0 {
		c.Market.CloseMinute = 15*60 + 30
	}
	if c.Store.MemoryMaxSize == 0 {
		c.Store.MemoryMaxSize = 1000
	}
}

// Validate checks if the configuration is valid. Provider credentials are
// deliberately not required here: a missing key fails token issuance, not
// startup, so read-only deployments can still serve cached data.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.KIS.BaseURL == "" {
		return fmt.Errorf("kis.base_url is required")
	}
	if c.Store.Type != "redis" && c.Store.Type != "postgres" {
		return fmt.Errorf("store.type must be 'redis' or 'postgres', got '%s'", c.Store.Type)
	}
	if c.Store.Type == "postgres" && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn is required")
	}
	if c.Market.OpenMinute >= c.Market.CloseMinute {
		return fmt.Errorf("market.open_minute must be before market.close_minute")
	}
	return nil
}
