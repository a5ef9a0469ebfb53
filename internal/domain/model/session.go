package model

import "time"

// SessionState is the lifecycle state of the operator's sign-in session.
type SessionState string

const (
	SessionUninitialized SessionState = "uninitialized"
	SessionInitializing  SessionState = "initializing"
	SessionReady         SessionState = "ready" // Initialized, not signed in.
	SessionAuthenticated SessionState = "authenticated"
	SessionError         SessionState = "error" // Identity provider could not be constructed.
)

// Account is a signed-in identity known to the identity provider's cache.
type Account struct {
	HomeAccountID string
	Username      string
	TenantID      string
	Environment   string
}

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool {
	return a.HomeAccountID == ""
}

// AuthResult is the outcome of a successful token acquisition.
type AuthResult struct {
	AccessToken string
	ExpiresOn   time.Time
	Account     Account
}

// SessionEventKind distinguishes session transitions that downstream
// services react to.
type SessionEventKind string

const (
	SessionEventAuthenticated SessionEventKind = "authenticated"
	SessionEventSignedOut     SessionEventKind = "signed_out"
)

// SessionEvent is published by the token session on sign-in and sign-out.
type SessionEvent struct {
	Kind    SessionEventKind
	Account Account
}
