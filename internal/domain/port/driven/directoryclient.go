package driven

import (
	"context"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// DirectoryClient defines the driven port for reading application
// registrations and their credentials from the directory API.
type DirectoryClient interface {
	// FetchApplications lists application registrations. Secrets and
	// Certificates are left empty; they are filled in by the aggregator.
	FetchApplications(ctx context.Context) ([]model.Application, error)

	// FetchSecrets returns the password credentials of one application, in API order.
	FetchSecrets(ctx context.Context, applicationID string) ([]model.Credential, error)

	// FetchCertificates returns the key credentials of one application, in API order.
	FetchCertificates(ctx context.Context, applicationID string) ([]model.Credential, error)
}

// CacheResetter is implemented by directory clients that cache responses.
// Cached entries are not partitioned by account, so they are dropped on
// sign-out.
type CacheResetter interface {
	ResetCache()
}
