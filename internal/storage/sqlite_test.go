package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T, path string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_SharedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	a := openTestSQLite(t, path)
	b := openTestSQLite(t, path)

	exerciseSharedStore(t, a, b, 200*time.Millisecond)
}

func TestSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	a, err := OpenSQLite(ctx, path, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, path, a.Path())
	require.NoError(t, a.Set(ctx, testKey, "first"))
	require.NoError(t, a.Set(ctx, testKey, "second"))
	require.NoError(t, a.Close())

	b := openTestSQLite(t, path)
	value, ok, err := b.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestSQLite_Closed(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chat.db"), 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), testKey)
	assert.ErrorIs(t, err, ErrClosed)
}
