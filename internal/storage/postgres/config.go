package postgres

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"rul-pipeline/internal/common/validation"
	"rul-pipeline/internal/storage"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "prefer"
)

// Config addresses the PostgreSQL database holding run history.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Validate fills the default port and sslmode and reports missing
// connection fields together.
func (c *Config) Validate() error {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.SSLMode == "" {
		c.SSLMode = defaultSSLMode
	}
	return validation.NewChecker("postgres").
		Required("host", c.Host).
		Required("database", c.Database).
		Required("username", c.Username).
		OneOf("sslmode", c.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full").
		Err()
}

func (c *Config) GetType() string { return "postgres" }

// GetConnectionString renders the lib/pq keyword form.
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// NewConfigFromURL parses a postgres:// URL. pgconn checks the URL, so a
// malformed port or sslmode is rejected here rather than on connect.
func NewConfigFromURL(connStr string) (*Config, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URL: %w", err)
	}
	pc, err := pgconn.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URL: %w", err)
	}
	if len(u.Path) < 2 {
		return nil, fmt.Errorf("PostgreSQL URL has no database name")
	}

	cfg := &Config{
		Host:     u.Hostname(),
		Port:     int(pc.Port),
		Database: u.Path[1:],
		Username: u.User.Username(),
		SSLMode:  u.Query().Get("sslmode"),
	}
	if password, ok := u.User.Password(); ok {
		cfg.Password = password
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = defaultSSLMode
	}
	return cfg, nil
}

// DefaultConfig targets a local server.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     defaultPort,
		Database: "rul_pipeline",
		Username: "postgres",
		SSLMode:  defaultSSLMode,
	}
}

// configFrom accepts a typed Config, the GenericConfig built by
// storage.NewRunStore, or a GenericConfig carrying a connection_string URL.
func configFrom(config storage.StorageConfig) (*Config, error) {
	switch c := config.(type) {
	case *Config:
		return c, nil
	case storage.GenericConfig:
		if cs := c.GetConnectionString(); cs != "" {
			return NewConfigFromURL(cs)
		}
		port, err := strconv.Atoi(c.String("port"))
		if err != nil {
			port = c.Int("port")
		}
		return &Config{
			Host:     c.String("host"),
			Port:     port,
			Database: c.String("database"),
			Username: c.String("username"),
			Password: c.String("password"),
			SSLMode:  c.String("sslmode"),
		}, nil
	default:
		return nil, fmt.Errorf("postgres store needs *postgres.Config or storage.GenericConfig, got %T", config)
	}
}
