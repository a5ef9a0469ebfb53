package msal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"

	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
)

// cacheService is the SecretStore key under which the serialized MSAL
// cache is kept.
const cacheService = "msal"

// Compile-time interface satisfaction check.
var _ cache.ExportReplace = (*TokenCache)(nil)

// TokenCache persists MSAL's serialized token cache through a SecretStore so
// a restarted dashboard restores the signed-in account without a prompt.
// When the store has no encryption key the cache is held in memory only.
type TokenCache struct {
	store  driven.SecretStore
	logger *slog.Logger

	mu     sync.Mutex
	memory []byte
}

// NewTokenCache creates a TokenCache. store may be nil for a memory-only cache.
func NewTokenCache(store driven.SecretStore, logger *slog.Logger) *TokenCache {
	return &TokenCache{store: store, logger: logger}
}

// Replace loads the persisted cache into MSAL before each token operation.
// A store failure is logged and treated as an empty cache.
func (c *TokenCache) Replace(ctx context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	data := c.load(ctx)
	if len(data) == 0 {
		return nil
	}
	return u.Unmarshal(data)
}

// Export writes MSAL's cache after each operation that changed it.
func (c *TokenCache) Export(ctx context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.memory = data
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Set(ctx, cacheService, data); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			return nil
		}
		c.logger.Warn("failed to persist token cache", "error", err)
	}
	return nil
}

// Clear drops both the in-memory and the persisted cache.
func (c *TokenCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.memory = nil
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, cacheService)
}

func (c *TokenCache) load(ctx context.Context) []byte {
	if c.store != nil {
		data, err := c.store.Get(ctx, cacheService)
		switch {
		case err == nil && len(data) > 0:
			return data
		case err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet):
			c.logger.Warn("failed to load token cache", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory
}
