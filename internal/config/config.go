package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a crewdeck instance.
type Config struct {
	Version int    `yaml:"version"`
	Env     string `yaml:"env"` // local, dev, prod
	Server  Server `yaml:"server"`
	Auth    Auth   `yaml:"auth"`
}

// Server holds the HTTP API settings.
type Server struct {
	Addr     string `yaml:"addr"`                // e.g. ":8080"
	DBPath   string `yaml:"db_path"`             // SQLite database file
	LogLevel string `yaml:"log_level,omitempty"` // debug, info, warn, error; default info
}

// Auth holds JWT settings. The secret may also come from the
// CREWDECK_JWT_SECRET environment variable, which wins over the file.
type Auth struct {
	JWTSecret   string `yaml:"jwt_secret,omitempty"`
	TokenTTLHrs int    `yaml:"token_ttl_hours,omitempty"` // 0 = default 24
}

// TokenTTLHours returns the effective token lifetime in hours.
func (a Auth) TokenTTLHours() int {
	if a.TokenTTLHrs > 0 {
		return a.TokenTTLHrs
	}
	return 24
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if secret := os.Getenv("CREWDECK_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Env:     "local",
		Server: Server{
			Addr:   ":8080",
			DBPath: ".crewdeck/crewdeck.db",
		},
		Auth: Auth{},
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("server.db_path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set CREWDECK_JWT_SECRET)")
	}
	switch c.Env {
	case "", "local", "dev", "prod":
	default:
		return fmt.Errorf("env must be local, dev or prod, got %q", c.Env)
	}
	return nil
}
