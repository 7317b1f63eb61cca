package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
}

func TestOpen(t *testing.T) {
	for _, typ := range []BackendType{MemoryBackend, SQLiteBackend} {
		t.Run(typ.String(), func(t *testing.T) {
			store, err := Open(Config{Type: typ, SQLiteDBPath: filepath.Join(t.TempDir(), "e.db")}, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			require.NoError(t, store.Ping(context.Background()))
			cats, err := store.ListCategories(context.Background())
			require.NoError(t, err)
			assert.Len(t, cats, 10)
		})
	}

	_, err := Open(Config{Type: "nope"}, nil)
	assert.Error(t, err)
}
