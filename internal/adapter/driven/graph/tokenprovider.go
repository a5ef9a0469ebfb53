package graph

import (
	"context"
	"net/url"
	"strings"

	absauth "github.com/microsoft/kiota-abstractions-go/authentication"
)

// TokenSource supplies bearer tokens for Graph requests. The token session
// satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// accessTokenProvider adapts a TokenSource to kiota's AccessTokenProvider.
// Tokens are only attached to requests for the configured Graph host.
type accessTokenProvider struct {
	source    TokenSource
	host      string
	validator absauth.AllowedHostsValidator
}

var _ absauth.AccessTokenProvider = (*accessTokenProvider)(nil)

func newAccessTokenProvider(source TokenSource, host string) *accessTokenProvider {
	return &accessTokenProvider{
		source:    source,
		host:      strings.ToLower(host),
		validator: absauth.NewAllowedHostsValidator([]string{host}),
	}
}

// GetAuthorizationToken returns the bearer token for u, or "" when u is not
// the Graph host.
func (p *accessTokenProvider) GetAuthorizationToken(ctx context.Context, u *url.URL, _ map[string]interface{}) (string, error) {
	if u == nil || strings.ToLower(u.Host) != p.host {
		return "", nil
	}
	return p.source.AccessToken(ctx)
}

func (p *accessTokenProvider) GetAllowedHostsValidator() *absauth.AllowedHostsValidator {
	return &p.validator
}
