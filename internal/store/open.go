package store

import (
	"strings"

	"github.com/prisma-miner/internal/domain"
)

// Open returns the store selected by cfg, or nil for the "none" driver.
func Open(cfg domain.StoreConfig) (RunStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "none":
		return nil, nil
	case "", "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStoreFromURL(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, domain.NewValidationError("store.driver", "must be sqlite, postgres or none", cfg.Driver)
}
