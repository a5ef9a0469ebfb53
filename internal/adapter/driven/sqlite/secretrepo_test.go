package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

func TestSecretRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)
	ctx := context.Background()

	err := repo.Set(ctx, "msal", []byte(`{"AccessToken":{}}`))
	require.NoError(t, err)

	val, err := repo.Get(ctx, "msal")
	require.NoError(t, err)
	assert.Equal(t, `{"AccessToken":{}}`, string(val))
}

func TestSecretRepo_ValueIsEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "msal", []byte("refresh-token-material")))

	var stored string
	err := db.Reader.QueryRowContext(ctx, `SELECT value FROM secrets WHERE service = ?`, "msal").Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "refresh-token-material")
}

func TestSecretRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)

	val, err := repo.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSecretRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "msal", []byte("old-value")))
	require.NoError(t, repo.Set(ctx, "msal", []byte("new-value")))

	val, err := repo.Get(ctx, "msal")
	require.NoError(t, err)
	assert.Equal(t, "new-value", string(val))

	var count int
	err = db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSecretRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "msal", []byte("cache")))
	require.NoError(t, repo.Delete(ctx, "msal"))

	val, err := repo.Get(ctx, "msal")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSecretRepo_DeleteNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey)

	err := repo.Delete(context.Background(), "nonexistent")
	assert.NoError(t, err, "deleting nonexistent secret should not error")
}

func TestSecretRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, nil)
	ctx := context.Background()

	err := repo.Set(ctx, "msal", []byte("cache"))
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "msal")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestSecretRepo_WrongKeyFailsToDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewSecretRepo(db, testKey).Set(ctx, "msal", []byte("cache")))

	other := NewSecretRepo(db, bytes.Repeat([]byte{0x24}, 32))
	_, err := other.Get(ctx, "msal")
	assert.Error(t, err)
}
