// Package config loads the service configuration from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Metadata MetadataConfig `yaml:"metadata"`
	Source   SourceConfig   `yaml:"source"`
}

// MetadataConfig describes the metadata PostgreSQL database holding model
// definitions and the process log.
type MetadataConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	Database          string `yaml:"database"`
	SSLMode           string `yaml:"ssl_mode"`
	MaxConnections    int32  `yaml:"max_connections"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_seconds"`
}

// SourceConfig carries source adapter settings that are not part of a model's
// connection string.
type SourceConfig struct {
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// Default returns the configuration defaults applied before the file is read.
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		Metadata: MetadataConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "vaultforge",
			Database:          "vaultforge",
			SSLMode:           "disable",
			MaxConnections:    10,
			ConnectTimeoutSec: 5,
		},
	}
}

// Load reads the configuration file, applies defaults and environment
// overrides. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables so credentials
// can stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("VAULTFORGE_METADATA_HOST"); v != "" {
		c.Metadata.Host = v
	}
	if v := os.Getenv("VAULTFORGE_METADATA_USER"); v != "" {
		c.Metadata.User = v
	}
	if v := os.Getenv("VAULTFORGE_METADATA_PASSWORD"); v != "" {
		c.Metadata.Password = v
	}
	if v := os.Getenv("VAULTFORGE_METADATA_DATABASE"); v != "" {
		c.Metadata.Database = v
	}
	if v := os.Getenv("VAULTFORGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// ConnectTimeout returns the metadata connect timeout as a duration.
func (m MetadataConfig) ConnectTimeout() time.Duration {
	if m.ConnectTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.ConnectTimeoutSec) * time.Second
}
