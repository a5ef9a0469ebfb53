package model

import "time"

// CredentialKind tags which Graph collection a Credential came from.
type CredentialKind string

const (
	CredentialSecret      CredentialKind = "secret"
	CredentialCertificate CredentialKind = "certificate"
)

// Application is an Azure AD application registration together with the
// credentials fetched for it in one aggregation run.
type Application struct {
	ID          string // Directory object ID; keys the secrets/certificates merge.
	AppID       string // Client ID shown in the portal.
	DisplayName string
	Notes       string

	// Secrets and Certificates are empty, never nil, once aggregated.
	Secrets      []Credential
	Certificates []Credential
}

// Credential is a client secret (passwordCredential) or certificate
// (keyCredential) attached to an application registration.
type Credential struct {
	KeyID         string
	DisplayName   string
	Hint          string // First characters of a secret; empty for certificates.
	Kind          CredentialKind
	StartDateTime time.Time
	EndDateTime   time.Time
}

// CredentialCount returns the total number of secrets and certificates.
func (a Application) CredentialCount() int {
	return len(a.Secrets) + len(a.Certificates)
}
