package sqlite

import (
	"fmt"

	"rul-pipeline/internal/common/validation"
	"rul-pipeline/internal/storage"
)

// Config locates the SQLite database file.
type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	return validation.NewChecker("sqlite").Required("path", c.DatabasePath).Err()
}

func (c *Config) GetType() string { return "sqlite" }

// GetConnectionString enables foreign keys and a busy timeout so the CLI and
// the server can share one file.
func (c *Config) GetConnectionString() string {
	return c.DatabasePath + "?_busy_timeout=5000&_foreign_keys=on"
}

// configFrom accepts a typed Config or the GenericConfig built by
// storage.NewRunStore.
func configFrom(config storage.StorageConfig) (*Config, error) {
	switch c := config.(type) {
	case *Config:
		return c, nil
	case storage.GenericConfig:
		return &Config{DatabasePath: c.String("path")}, nil
	default:
		return nil, fmt.Errorf("sqlite store needs *sqlite.Config or storage.GenericConfig, got %T", config)
	}
}
