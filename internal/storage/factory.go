package storage

import (
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/config"
)

// NewRunStore creates the run store selected by DATABASE_TYPE. It returns a
// nil store and no error when run history is disabled.
func NewRunStore(cfg *config.Config) (RunStore, error) {
	var storageConfig StorageConfig
	storageType := cfg.DatabaseType

	switch {
	case storageType == "none":
		return nil, nil

	case storageType == "sqlite":
		storageConfig = GenericConfig{
			"path": cfg.DatabasePath,
		}

	case cfg.IsPostgres():
		storageType = "postgres"
		storageConfig = GenericConfig{
			"host":     cfg.PostgresHost,
			"port":     cfg.PostgresPort,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		}

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	if !DefaultRegistry.Has(storageType) {
		return nil, errors.ValidationError(fmt.Sprintf("storage type %s is not compiled in (available: %v)",
			storageType, DefaultRegistry.Types()))
	}
	store, err := Create(storageType, storageConfig)
	if err != nil {
		return nil, errors.ConnectionError("failed to open run store", err).WithContext("type", storageType)
	}
	return store, nil
}
