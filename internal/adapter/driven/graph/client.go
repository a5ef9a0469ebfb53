// Package graph implements the DirectoryClient port on the Microsoft Graph SDK.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gregjones/httpcache"
	absauth "github.com/microsoft/kiota-abstractions-go/authentication"
	msgraph "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/applications"
	"github.com/microsoftgraph/msgraph-sdk-go/models"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
	"github.com/ericfisherdev/credwatch/internal/metrics"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// pageSize is the $top value requested for the application listing.
const pageSize int32 = 100

// Compile-time interface satisfaction checks.
var (
	_ driven.DirectoryClient = (*Client)(nil)
	_ driven.CacheResetter   = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL string // Defaults to DefaultBaseURL.

	// MaxPages bounds how many application pages are followed through
	// @odata.nextLink. Zero means no limit.
	MaxPages int

	// HTTPClient overrides the transport, response cache included.
	// Defaults to an httpcache-backed client with a 30 second timeout.
	HTTPClient *http.Client

	// Transport sits beneath the response cache. Defaults to
	// http.DefaultTransport; ignored when HTTPClient is set.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client implements driven.DirectoryClient using msgraph-sdk-go. Bearer
// tokens are obtained per request from a TokenSource.
type Client struct {
	gc       *msgraph.GraphServiceClient
	cache    *responseCache // nil when Options.HTTPClient was supplied
	maxPages int
	logger   *slog.Logger
}

// NewClient creates a Graph client with the following transport stack:
//  1. httpcache (conditional request caching)
//  2. kiota bearer-token authentication fed by source
//  3. msgraph-sdk-go typed request builders
func NewClient(source TokenSource, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var cache *responseCache
	if opts.HTTPClient == nil {
		cache = newResponseCache()
		transport := httpcache.NewTransport(cache)
		transport.Transport = opts.Transport
		opts.HTTPClient = &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		}
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	auth := absauth.NewBaseBearerTokenAuthenticationProvider(newAccessTokenProvider(source, base.Host))
	adapter, err := msgraph.NewGraphRequestAdapterWithParseNodeFactoryAndSerializationWriterFactoryAndHttpClient(auth, nil, nil, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("creating graph request adapter: %w", err)
	}
	// The service client captures the base URL on construction.
	adapter.SetBaseUrl(opts.BaseURL)

	return &Client{
		gc:       msgraph.NewGraphServiceClient(adapter),
		cache:    cache,
		maxPages: opts.MaxPages,
		logger:   opts.Logger,
	}, nil
}

// ResetCache drops every cached Graph response. It is called on sign-out so
// the next account never sees the previous account's directory.
func (c *Client) ResetCache() {
	if c.cache == nil {
		return
	}
	c.cache.reset()
	c.logger.Debug("graph response cache reset")
}

// FetchApplications lists application registrations, following
// @odata.nextLink up to the configured page limit.
func (c *Client) FetchApplications(ctx context.Context) ([]model.Application, error) {
	top := pageSize
	cfg := &applications.ApplicationsRequestBuilderGetRequestConfiguration{
		QueryParameters: &applications.ApplicationsRequestBuilderGetQueryParameters{
			Select: []string{"id", "appId", "displayName", "notes"},
			Top:    &top,
		},
	}

	builder := c.gc.Applications()
	apps := []model.Application{}

	for page := 1; ; page++ {
		start := time.Now()
		resp, err := builder.Get(ctx, cfg)
		observe("applications", start, err)
		if err != nil {
			return nil, fmt.Errorf("listing applications (page %d): %w", page, err)
		}

		values := resp.GetValue()
		for _, app := range values {
			apps = append(apps, mapApplication(app))
		}

		next := resp.GetOdataNextLink()
		c.logger.Debug("graph api call", "endpoint", "applications", "page", page, "count", len(values), "has_next", next != nil)

		if next == nil || *next == "" {
			break
		}
		if c.maxPages > 0 && page >= c.maxPages {
			c.logger.Warn("application listing truncated at page limit",
				"max_pages", c.maxPages,
				"applications", len(apps),
			)
			break
		}

		// The next link already carries every query option.
		builder = c.gc.Applications().WithUrl(*next)
		cfg = nil
	}

	return apps, nil
}

// FetchSecrets returns the password credentials of one application.
func (c *Client) FetchSecrets(ctx context.Context, applicationID string) ([]model.Credential, error) {
	app, err := c.getApplication(ctx, applicationID, "passwordCredentials")
	if err != nil {
		return nil, err
	}

	creds := make([]model.Credential, 0, len(app.GetPasswordCredentials()))
	for _, pc := range app.GetPasswordCredentials() {
		creds = append(creds, mapPasswordCredential(pc))
	}
	return creds, nil
}

// FetchCertificates returns the key credentials of one application.
func (c *Client) FetchCertificates(ctx context.Context, applicationID string) ([]model.Credential, error) {
	app, err := c.getApplication(ctx, applicationID, "keyCredentials")
	if err != nil {
		return nil, err
	}

	creds := make([]model.Credential, 0, len(app.GetKeyCredentials()))
	for _, kc := range app.GetKeyCredentials() {
		creds = append(creds, mapKeyCredential(kc))
	}
	return creds, nil
}

func (c *Client) getApplication(ctx context.Context, applicationID, property string) (models.Applicationable, error) {
	cfg := &applications.ApplicationItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &applications.ApplicationItemRequestBuilderGetQueryParameters{
			Select: []string{"id", property},
		},
	}

	start := time.Now()
	app, err := c.gc.Applications().ByApplicationId(applicationID).Get(ctx, cfg)
	observe(property, start, err)
	if err != nil {
		return nil, fmt.Errorf("fetching %s for application %s: %w", property, applicationID, err)
	}
	return app, nil
}

func observe(endpoint string, start time.Time, err error) {
	metrics.ObserveDuration(metrics.GraphRequestDuration.WithLabelValues(endpoint), start)
	metrics.GraphRequestsTotal.WithLabelValues(endpoint, metrics.Result(err)).Inc()
}

// mapApplication converts a Graph application to a domain Application.
// Secrets and Certificates start empty; the aggregator fills them in.
func mapApplication(app models.Applicationable) model.Application {
	return model.Application{
		ID:           deref(app.GetId()),
		AppID:        deref(app.GetAppId()),
		DisplayName:  deref(app.GetDisplayName()),
		Notes:        deref(app.GetNotes()),
		Secrets:      []model.Credential{},
		Certificates: []model.Credential{},
	}
}

// mapPasswordCredential converts a Graph passwordCredential to a domain Credential.
func mapPasswordCredential(pc models.PasswordCredentialable) model.Credential {
	cred := model.Credential{
		DisplayName:   deref(pc.GetDisplayName()),
		Hint:          deref(pc.GetHint()),
		Kind:          model.CredentialSecret,
		StartDateTime: derefTime(pc.GetStartDateTime()),
		EndDateTime:   derefTime(pc.GetEndDateTime()),
	}
	if id := pc.GetKeyId(); id != nil {
		cred.KeyID = id.String()
	}
	return cred
}

// mapKeyCredential converts a Graph keyCredential to a domain Credential.
func mapKeyCredential(kc models.KeyCredentialable) model.Credential {
	cred := model.Credential{
		DisplayName:   deref(kc.GetDisplayName()),
		Kind:          model.CredentialCertificate,
		StartDateTime: derefTime(kc.GetStartDateTime()),
		EndDateTime:   derefTime(kc.GetEndDateTime()),
	}
	if id := kc.GetKeyId(); id != nil {
		cred.KeyID = id.String()
	}
	return cred
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
