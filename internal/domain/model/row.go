package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThresholdDays is the expiry window used until the operator changes it.
const DefaultThresholdDays = 30

// FilterMode restricts which credential kinds are projected into rows.
type FilterMode string

const (
	FilterAll          FilterMode = "all"
	FilterSecrets      FilterMode = "secrets"
	FilterCertificates FilterMode = "certificates"
)

// ParseFilterMode converts user input into a FilterMode. The empty string
// maps to FilterAll.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterSecrets:
		return FilterSecrets, nil
	case FilterCertificates:
		return FilterCertificates, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilterMode, s)
	}
}

// Includes reports whether credentials of the given kind are in scope.
func (m FilterMode) Includes(kind CredentialKind) bool {
	switch m {
	case FilterSecrets:
		return kind == CredentialSecret
	case FilterCertificates:
		return kind == CredentialCertificate
	default:
		return true
	}
}

// Row is one credential flattened for the expiry table. Rows are derived on
// every projection and never stored.
type Row struct {
	ApplicationID   string
	ApplicationName string
	Type            CredentialKind
	KeyID           string
	DisplayName     string
	EndDateTime     time.Time
	DaysToExpiry    int
}
