package settings

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/breatheroute/airdash/internal/database"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// BackendConfig selects and locates the settings storage.
type BackendConfig struct {
	Kind       string
	SQLitePath string
	// Postgres is read from DB_* when Kind is BackendPostgres and this is nil.
	Postgres *database.Config
	Clock    clockwork.Clock
}

// Backend is an opened Storage with the connection behind it.
type Backend struct {
	Storage Storage
	ping    func(ctx context.Context) error
	close   func()
}

// OpenBackend opens the configured storage and prepares its schema.
func OpenBackend(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	switch cfg.Kind {
	case BackendMemory:
		return &Backend{Storage: NewMemoryStorage()}, nil

	case BackendSQLite, "":
		sqlCfg := database.SQLiteConfigFromEnv()
		if cfg.SQLitePath != "" {
			sqlCfg.Path = cfg.SQLitePath
		}
		db, err := database.OpenSQLite(ctx, sqlCfg)
		if err != nil {
			return nil, err
		}
		storage, err := NewSQLiteStorage(ctx, db, cfg.Clock)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Backend{Storage: storage, ping: db.PingContext, close: func() { _ = db.Close() }}, nil

	case BackendPostgres:
		pgCfg := database.ConfigFromEnv()
		if cfg.Postgres != nil {
			pgCfg = *cfg.Postgres
		}
		pool, err := database.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		storage, err := NewPostgresStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{Storage: storage, ping: pool.Ping, close: pool.Close}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Kind)
}

// PingContext checks the connection. In-memory storage is always reachable.
func (b *Backend) PingContext(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the connection.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}
