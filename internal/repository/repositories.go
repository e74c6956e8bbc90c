package repository

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	// Records is the entity store selected by store.driver.
	Records Store
}

// NewRepositories picks the store backend for the configured driver, using the
// connections the server opened for it.
func NewRepositories(s *server.Server) *Repositories {
	var store Store
	switch s.Config.Store.Driver {
	case config.StorePostgres:
		store = NewPostgresStore(s.DB.Pool)
	case config.StoreSQLite:
		store = NewSQLiteStore(s.SQLite)
	case config.StoreRedis:
		store = NewRedisStore(s.Redis)
	default:
		store = NewMemoryStore()
	}

	return &Repositories{
		Records: Instrument(store, s.Config.Store.Driver, s.Config.Observability.Logging.SlowQueryThreshold, s.Metrics),
	}
}
