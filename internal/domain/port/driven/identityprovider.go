package driven

import (
	"context"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// IdentityProvider defines the driven port for the OAuth identity provider
// client. A single instance is owned by the token session for the lifetime
// of the process.
type IdentityProvider interface {
	// Accounts returns the accounts present in the provider's token cache.
	Accounts(ctx context.Context) ([]model.Account, error)

	// AcquireTokenSilent returns a token for account without user interaction,
	// refreshing it from the cache if needed.
	AcquireTokenSilent(ctx context.Context, scopes []string, account model.Account) (model.AuthResult, error)

	// AcquireTokenInteractive runs an interactive sign-in in the operator's
	// browser. loginHint pre-fills the username and may be empty.
	AcquireTokenInteractive(ctx context.Context, scopes []string, loginHint string) (model.AuthResult, error)

	// Logout removes account from the cache and ends the browser session.
	Logout(ctx context.Context, account model.Account) error
}

// IdentityProviderFactory constructs the identity provider client. It is
// called once, when the session initializes.
type IdentityProviderFactory func(ctx context.Context) (IdentityProvider, error)
