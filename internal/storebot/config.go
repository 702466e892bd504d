package storebot

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/storebot/core/config"
	coredatabase "github.com/m3rciful/storebot/core/database"
	"github.com/m3rciful/storebot/core/telegram/state"
	"github.com/m3rciful/storebot/internal/commerce"
)

// SessionConfig selects the store that keeps each user's conversation state.
type SessionConfig struct {
	Backend  string                   `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Redis    coredatabase.RedisConfig `yaml:"redis"`
	Postgres coredatabase.Config      `yaml:"postgres"`
}

// OpsConfig configures the health endpoint server; an empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the complete bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Strapi  commerce.Config `yaml:"strapi"`
	Session SessionConfig   `yaml:"session"`
	Ops     OpsConfig       `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file at path (optional) and the environment.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Strapi.Normalize(); err != nil {
		return fmt.Errorf("%w: %v", coreconfig.ErrConfiguration, err)
	}

	backend := strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch backend {
	case "":
		backend = state.BackendRedis
	case state.BackendRedis, state.BackendMemory:
	case state.BackendPostgres:
		pg := c.Session.Postgres
		if pg.Host == "" || pg.Name == "" || pg.User == "" {
			return fmt.Errorf("%w: session.postgres host, name and user are required for the postgres backend", coreconfig.ErrConfiguration)
		}
		if c.Session.Postgres.Port == "" {
			c.Session.Postgres.Port = "5432"
		}
		if c.Session.Postgres.SSLMode == "" {
			c.Session.Postgres.SSLMode = "disable"
		}
		if c.Session.Postgres.MaxConnections <= 0 {
			c.Session.Postgres.MaxConnections = 5
		}
	default:
		return fmt.Errorf("%w: invalid session.backend %q; allowed: redis, postgres, memory", coreconfig.ErrConfiguration, c.Session.Backend)
	}
	c.Session.Backend = backend
	c.Ops.Listen = strings.TrimSpace(c.Ops.Listen)
	return nil
}
