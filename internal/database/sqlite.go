package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	// Path is a file path, a "file:" URI or MemoryPath.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	MaxOpenConns int
}

// SQLiteConfigFromEnv creates a SQLiteConfig from SQLITE_* environment variables.
func SQLiteConfigFromEnv() SQLiteConfig {
	return SQLiteConfig{
		Path:         env("SQLITE_PATH", "data/airdash.db"),
		BusyTimeout:  envDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),
		MaxOpenConns: 4,
	}
}

// OpenSQLite opens and pings a SQLite database, creating its directory.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*sql.DB, error) {
	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func sqliteDSN(cfg SQLiteConfig) (string, error) {
	if cfg.Path == "" || cfg.Path == MemoryPath {
		return MemoryPath, nil
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	params := []string{
		fmt.Sprintf("_busy_timeout=%d", busy.Milliseconds()),
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(cfg.Path, "file:") {
		sep := "?"
		if strings.Contains(cfg.Path, "?") {
			sep = "&"
		}
		return cfg.Path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory %s: %w", dir, err)
		}
	}
	return "file:" + cfg.Path + "?" + strings.Join(params, "&"), nil
}
