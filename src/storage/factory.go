package storage

import (
	"fmt"

	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"
)

// NewBarStore picks the backend named by storage.db_type. It returns nil, nil
// when journaling is disabled.
func NewBarStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IBarStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteBarStore(cfg, log.Named("SQLiteBarStore")), nil
	case "postgres":
		store, err := NewPostgresBarStore(cfg, log.Named("PostgresBarStore"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database type '%s'", cfg.Storage.DBType)
	}
}
