package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/settings"
)

func TestOpenBackend_Memory(t *testing.T) {
	b, err := settings.OpenBackend(context.Background(), settings.BackendConfig{Kind: settings.BackendMemory})
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &settings.MemoryStorage{}, b.Storage)
	assert.NoError(t, b.PingContext(context.Background()))
}

func TestOpenBackend_SQLiteFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "airdash.db")
	cfg := settings.BackendConfig{Kind: settings.BackendSQLite, SQLitePath: path, Clock: clockwork.NewFakeClock()}

	first, err := settings.OpenBackend(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.PingContext(ctx))
	require.NoError(t, first.Storage.Set(ctx, settings.KeyAutoRefresh, "true"))
	first.Close()

	second, err := settings.OpenBackend(ctx, cfg)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Storage.Get(ctx, settings.KeyAutoRefresh)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := settings.OpenBackend(context.Background(), settings.BackendConfig{Kind: "redis"})
	assert.ErrorContains(t, err, "unknown storage backend")
}
