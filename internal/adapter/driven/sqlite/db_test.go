package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_RestrictsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credwatch.db")

	db, err := NewDB(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunMigrations(db.Writer)
	require.NoError(t, err)
	require.NoError(t, NewSecretRepo(db, testKey).Set(context.Background(), "msal", []byte("cache")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, dbFileMode, info.Mode().Perm())
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err, "second run should be a no-op")
	assert.Equal(t, uint(1), version)
}

func TestRunMigrations_DirtySchema(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Writer.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)

	_, err = RunMigrations(db.Writer)
	require.ErrorIs(t, err, ErrDirtySchema)
	assert.Contains(t, err.Error(), "version 1")
}
