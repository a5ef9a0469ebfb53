package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by SecretStore operations when
// CREDWATCH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set CREDWATCH_SECRET_KEY")

// SecretStore defines the driven port for encrypted secret persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type SecretStore interface {
	// Set stores or replaces the value for the given service.
	Set(ctx context.Context, service string, plaintext []byte) error

	// Get retrieves the plaintext value for the given service.
	// Returns (nil, nil) if nothing is stored for that service.
	Get(ctx context.Context, service string) ([]byte, error)

	// Delete removes the value for the given service.
	Delete(ctx context.Context, service string) error
}
