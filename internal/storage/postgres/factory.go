package postgres

import "rul-pipeline/internal/storage"

func init() {
	storage.Register("postgres", FromConfig)
}

// FromConfig opens the PostgreSQL run store described by config.
func FromConfig(config storage.StorageConfig) (storage.RunStore, error) {
	cfg, err := configFrom(config)
	if err != nil {
		return nil, err
	}
	return NewAdapter(cfg)
}
