package model

import "errors"

// Authentication errors.
var (
	ErrAuthInit              = errors.New("identity provider initialization failed")
	ErrLogin                 = errors.New("interactive login failed")
	ErrLogout                = errors.New("interactive logout failed")
	ErrTokenUnavailable      = errors.New("no access token available")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInteractionInProgress = errors.New("an interactive sign-in is already in progress")
)

// Directory data errors.
var (
	ErrFetchApplications = errors.New("fetching applications failed")
	ErrFetchCredentials  = errors.New("fetching credentials failed")
)

// Input errors.
var (
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidFilterMode = errors.New("invalid filter mode")
)
