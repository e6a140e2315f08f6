package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WithMemory(t *testing.T) {
	db, err := New(WithMemory())
	require.NoError(t, err)
	require.NotNil(t, db.Get())
	require.NoError(t, db.Close())
}

func TestNew_WithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coinwatch.db")
	db, err := New(WithPath(path))
	require.NoError(t, err)
	require.NotNil(t, db.Get())
	require.NoError(t, db.Close())
	require.FileExists(t, path)
}

func TestClose_NilConn(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
