package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
	"github.com/ericfisherdev/credwatch/internal/metrics"
)

// credentialFetch is the signature shared by DirectoryClient.FetchSecrets and
// DirectoryClient.FetchCertificates.
type credentialFetch func(ctx context.Context, applicationID string) ([]model.Credential, error)

// Aggregator fetches application registrations and merges their secrets and
// certificates into a single snapshot.
type Aggregator struct {
	concurrency int
	logger      *slog.Logger
}

// NewAggregator creates an Aggregator. concurrency bounds in-flight
// per-application requests within each batch; zero means unbounded.
func NewAggregator(concurrency int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{concurrency: concurrency, logger: logger}
}

// FetchAll lists every application and fetches its credentials. The secrets
// batch and the certificates batch run concurrently and FetchAll returns
// once both have settled. A failed per-application fetch yields an empty
// list for that field rather than failing the run. Only a failed
// application listing or a canceled context returns an error.
func (a *Aggregator) FetchAll(ctx context.Context, client driven.DirectoryClient) ([]model.Application, error) {
	start := time.Now()

	apps, err := client.FetchApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFetchApplications, err)
	}

	var secrets, certificates map[string][]model.Credential

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		secrets, err = a.fetchBatch(gctx, apps, model.CredentialSecret, client.FetchSecrets)
		return err
	})
	g.Go(func() error {
		var err error
		certificates, err = a.fetchBatch(gctx, apps, model.CredentialCertificate, client.FetchCertificates)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]model.Application, 0, len(apps))
	var nSecrets, nCerts int
	for _, app := range apps {
		app.Secrets = nonNil(secrets[app.ID])
		app.Certificates = nonNil(certificates[app.ID])
		nSecrets += len(app.Secrets)
		nCerts += len(app.Certificates)
		merged = append(merged, app)
	}

	a.logger.Info("aggregation complete",
		"applications", len(merged),
		"secrets", nSecrets,
		"certificates", nCerts,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return merged, nil
}

// fetchBatch runs fetch for every application and returns the results keyed
// by application ID.
func (a *Aggregator) fetchBatch(
	ctx context.Context,
	apps []model.Application,
	kind model.CredentialKind,
	fetch credentialFetch,
) (map[string][]model.Credential, error) {
	results := make([][]model.Credential, len(apps))

	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, app := range apps {
		g.Go(func() error {
			creds, err := fetch(gctx, app.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.CredentialFetchFailures.WithLabelValues(string(kind)).Inc()
				a.logger.Warn("credential fetch failed, treating as empty",
					"kind", string(kind),
					"application_id", app.ID,
					"application", app.DisplayName,
					"error", fmt.Errorf("%w: %w", model.ErrFetchCredentials, err),
				)
				creds = nil
			}
			results[i] = creds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string][]model.Credential, len(apps))
	for i, app := range apps {
		byID[app.ID] = results[i]
	}
	return byID, nil
}

func nonNil(creds []model.Credential) []model.Credential {
	if creds == nil {
		return []model.Credential{}
	}
	return creds
}
