// Package msal implements the IdentityProvider port with the Microsoft
// Authentication Library public client.
package msal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"github.com/cli/browser"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityProvider = (*Provider)(nil)

// errAccountNotCached is returned when an operation names an account that is
// no longer present in the token cache.
var errAccountNotCached = errors.New("account not found in token cache")

// Config holds the public client registration used to sign in.
type Config struct {
	ClientID    string
	Authority   string // e.g. https://login.microsoftonline.com/<tenant>/
	RedirectURI string // Loopback URI registered for the public client.
}

// publicClient is the subset of public.Client the provider calls.
type publicClient interface {
	Accounts(ctx context.Context) ([]public.Account, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error)
	RemoveAccount(ctx context.Context, account public.Account) error
}

// Provider implements driven.IdentityProvider on top of public.Client.
// Interactive flows open the operator's default browser and complete
// through a loopback redirect served by MSAL.
type Provider struct {
	client      publicClient
	cache       *TokenCache
	authority   string
	redirectURI string
	openURL     func(string) error
	logger      *slog.Logger
}

// NewProvider constructs the MSAL public client. cache may be nil, in which
// case tokens live only in MSAL's in-process cache.
func NewProvider(cfg Config, cache *TokenCache, logger *slog.Logger) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("msal: client ID is required")
	}

	opts := []public.Option{public.WithAuthority(cfg.Authority)}
	if cache != nil {
		opts = append(opts, public.WithCache(cache))
	}

	client, err := public.New(cfg.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create msal public client: %w", err)
	}

	return &Provider{
		client:      client,
		cache:       cache,
		authority:   cfg.Authority,
		redirectURI: cfg.RedirectURI,
		openURL:     browser.OpenURL,
		logger:      logger,
	}, nil
}

// Factory returns a driven.IdentityProviderFactory that constructs a
// Provider when the session initializes.
func Factory(cfg Config, cache *TokenCache, logger *slog.Logger) driven.IdentityProviderFactory {
	return func(_ context.Context) (driven.IdentityProvider, error) {
		return NewProvider(cfg, cache, logger)
	}
}

// Accounts returns the accounts held in the token cache.
func (p *Provider) Accounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := p.client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached accounts: %w", err)
	}

	result := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, mapAccount(a))
	}
	return result, nil
}

// AcquireTokenSilent returns a cached or refreshed token for account.
func (p *Provider) AcquireTokenSilent(ctx context.Context, scopes []string, account model.Account) (model.AuthResult, error) {
	cached, err := p.findAccount(ctx, account)
	if err != nil {
		return model.AuthResult{}, err
	}

	res, err := p.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(cached))
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("acquire token silently for %s: %w", account.Username, err)
	}
	return mapResult(res), nil
}

// AcquireTokenInteractive signs the operator in through the browser.
func (p *Provider) AcquireTokenInteractive(ctx context.Context, scopes []string, loginHint string) (model.AuthResult, error) {
	opts := []public.AcquireInteractiveOption{public.WithRedirectURI(p.redirectURI)}
	if loginHint != "" {
		opts = append(opts, public.WithLoginHint(loginHint))
	}

	res, err := p.client.AcquireTokenInteractive(ctx, scopes, opts...)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("acquire token interactively: %w", err)
	}
	return mapResult(res), nil
}

// Logout removes account from the token cache, then opens the identity
// provider's end-session page so the browser session is cleared as well.
// Once no account is left the persisted cache blob is deleted too, so app
// metadata and tenant discovery entries do not outlive the sign-out.
func (p *Provider) Logout(ctx context.Context, account model.Account) error {
	cached, err := p.findAccount(ctx, account)
	if err != nil && !errors.Is(err, errAccountNotCached) {
		return err
	}
	if err == nil {
		if err := p.client.RemoveAccount(ctx, cached); err != nil {
			return fmt.Errorf("remove account %s: %w", account.Username, err)
		}
	}
	if err := p.clearCacheIfEmpty(ctx); err != nil {
		return err
	}

	logoutURL, err := LogoutURL(p.authority, p.redirectURI)
	if err != nil {
		return err
	}
	if err := p.openURL(logoutURL); err != nil {
		return fmt.Errorf("open logout page: %w", err)
	}

	p.logger.Info("signed out", "username", account.Username)
	return nil
}

// LogoutURL builds the OAuth 2.0 end-session URL for authority.
func LogoutURL(authority, postLogoutRedirectURI string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(authority, "/") + "/oauth2/v2.0/logout")
	if err != nil {
		return "", fmt.Errorf("parse authority %q: %w", authority, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("authority %q must be an absolute https URL", authority)
	}

	if postLogoutRedirectURI != "" {
		q := u.Query()
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (p *Provider) clearCacheIfEmpty(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	remaining, err := p.client.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list cached accounts: %w", err)
	}
	if len(remaining) > 0 {
		return nil
	}
	if err := p.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear token cache: %w", err)
	}
	return nil
}

func (p *Provider) findAccount(ctx context.Context, account model.Account) (public.Account, error) {
	accounts, err := p.client.Accounts(ctx)
	if err != nil {
		return public.Account{}, fmt.Errorf("list cached accounts: %w", err)
	}
	for _, a := range accounts {
		if a.HomeAccountID == account.HomeAccountID {
			return a, nil
		}
	}
	return public.Account{}, fmt.Errorf("%w: %s", errAccountNotCached, account.Username)
}

func mapAccount(a public.Account) model.Account {
	return model.Account{
		HomeAccountID: a.HomeAccountID,
		Username:      a.PreferredUsername,
		TenantID:      a.Realm,
		Environment:   a.Environment,
	}
}

func mapResult(res public.AuthResult) model.AuthResult {
	return model.AuthResult{
		AccessToken: res.AccessToken,
		ExpiresOn:   res.ExpiresOn,
		Account:     mapAccount(res.Account),
	}
}
