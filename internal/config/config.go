// Package config loads hookgraph configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Drivers accepted in database.driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full configuration.
type Config struct {
	Server struct {
		Listen   string `yaml:"listen"`
		Token    string `yaml:"token"`
		LogLevel string `yaml:"log_level"`
		LogJSON  bool   `yaml:"log_json"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Usage struct {
		Limit  int64         `yaml:"limit"`
		Window time.Duration `yaml:"window"`
	} `yaml:"usage"`
	Registry struct {
		Path string `yaml:"path"`
	} `yaml:"registry"`
	Client struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"client"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads path (if non-empty), then applies environment overrides and
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("HOOKGRAPH_LISTEN", &c.Server.Listen)
	set("HOOKGRAPH_API_URL", &c.Client.URL)
	set("HOOKGRAPH_TOKEN", &c.Client.Token)
	set("HOOKGRAPH_SERVER_TOKEN", &c.Server.Token)
	set("HOOKGRAPH_LOG_LEVEL", &c.Server.LogLevel)
	set("REDIS_ADDR", &c.Redis.Addr)
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
		if c.Database.Driver == "" {
			c.Database.Driver = DriverPostgres
		}
	}
	if v, ok := lookup("HOOKGRAPH_USAGE_LIMIT"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HOOKGRAPH_USAGE_LIMIT: %w", err)
		}
		c.Usage.Limit = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":3000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "hookgraph:"
	}
	if c.Usage.Limit <= 0 {
		c.Usage.Limit = 100
	}
	if c.Client.URL == "" {
		c.Client.URL = "http://localhost:3000"
	}
}

// Validate checks the database settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}
