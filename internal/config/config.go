package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend modes.
const (
	ModePostgres = "postgres"
	ModeREST     = "rest"
	ModeLocal    = "local"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Database  DatabaseConfig  `yaml:"database"`
	REST      RESTConfig      `yaml:"rest"`
	Local     LocalConfig     `yaml:"local"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type BackendConfig struct {
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RESTConfig points at a PostgREST-style hosted backend.
type RESTConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type LocalConfig struct {
	Dir string `yaml:"dir"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// AuthConfig guards the import endpoint. An empty key disables it.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	ToStdout   bool   `yaml:"to_stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix IRONLOG_ and underscore-separated paths:
//
//	IRONLOG_SERVER_HOST, IRONLOG_SERVER_PORT, IRONLOG_BACKEND_MODE,
//	IRONLOG_DB_HOST, IRONLOG_DB_PORT, IRONLOG_DB_NAME,
//	IRONLOG_DB_USER, IRONLOG_DB_PASSWORD, IRONLOG_DB_SSLMODE,
//	IRONLOG_REST_URL, IRONLOG_REST_API_KEY, IRONLOG_REST_TIMEOUT,
//	IRONLOG_LOCAL_DIR, IRONLOG_TAILSCALE_ENABLED, IRONLOG_TAILSCALE_HOSTNAME,
//	IRONLOG_AUTH_API_KEY, IRONLOG_LOG_LEVEL, IRONLOG_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("IRONLOG_SERVER_HOST", &cfg.Server.Host)
	num("IRONLOG_SERVER_PORT", &cfg.Server.Port)
	str("IRONLOG_BACKEND_MODE", &cfg.Backend.Mode)

	str("IRONLOG_DB_HOST", &cfg.Database.Host)
	num("IRONLOG_DB_PORT", &cfg.Database.Port)
	str("IRONLOG_DB_NAME", &cfg.Database.Name)
	str("IRONLOG_DB_USER", &cfg.Database.User)
	str("IRONLOG_DB_PASSWORD", &cfg.Database.Password)
	str("IRONLOG_DB_SSLMODE", &cfg.Database.SSLMode)

	str("IRONLOG_REST_URL", &cfg.REST.URL)
	str("IRONLOG_REST_API_KEY", &cfg.REST.APIKey)
	if v := os.Getenv("IRONLOG_REST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.REST.Timeout = d
		}
	}

	str("IRONLOG_LOCAL_DIR", &cfg.Local.Dir)

	if v := os.Getenv("IRONLOG_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	str("IRONLOG_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)

	str("IRONLOG_AUTH_API_KEY", &cfg.Auth.APIKey)
	str("IRONLOG_LOG_LEVEL", &cfg.Log.Level)
	str("IRONLOG_LOG_FILE", &cfg.Log.File)
}

func (c *Config) applyDefaults() {
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	if c.Backend.Mode == "" {
		c.Backend.Mode = ModePostgres
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.REST.Timeout == 0 {
		c.REST.Timeout = 10 * time.Second
	}
	if c.Local.Dir == "" {
		c.Local.Dir = "data"
	}
	if c.Tailscale.StateDir == "" {
		c.Tailscale.StateDir = "tsnet-state"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Backend.Mode {
	case ModePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case ModeREST:
		if c.REST.URL == "" {
			return fmt.Errorf("rest.url is required")
		}
		if c.REST.APIKey == "" {
			return fmt.Errorf("rest.api_key is required")
		}
		if c.REST.Timeout < 0 {
			return fmt.Errorf("rest.timeout must not be negative")
		}
	case ModeLocal:
	default:
		return fmt.Errorf("backend.mode %q is not one of %s, %s, %s",
			c.Backend.Mode, ModePostgres, ModeREST, ModeLocal)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
