package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
	"github.com/ericfisherdev/credwatch/internal/metrics"
)

// DefaultScopes is the delegated permission requested for directory reads.
var DefaultScopes = []string{"Directory.Read.All"}

// DefaultInteractiveTimeout bounds how long an interactive flow waits for the
// operator to finish in the browser. An abandoned tab otherwise holds the
// flow open until the caller's context ends.
const DefaultInteractiveTimeout = 5 * time.Minute

// eventBuffer bounds queued session events. Events beyond it are dropped.
const eventBuffer = 16

// SessionConfig holds the TokenSession settings.
type SessionConfig struct {
	// Scopes requested on every token acquisition. Defaults to DefaultScopes.
	Scopes []string

	// InteractiveTimeout limits each interactive flow. Defaults to
	// DefaultInteractiveTimeout.
	InteractiveTimeout time.Duration
}

// TokenSession owns the identity provider client and the signed-in account.
// It is safe for concurrent use.
type TokenSession struct {
	factory            driven.IdentityProviderFactory
	scopes             []string
	interactiveTimeout time.Duration
	logger             *slog.Logger

	mu       sync.Mutex
	provider driven.IdentityProvider
	state    model.SessionState
	account  model.Account

	interacting atomic.Bool
	events      chan model.SessionEvent
}

// NewTokenSession creates a session in the uninitialized state. The factory
// is not called until Initialize.
func NewTokenSession(factory driven.IdentityProviderFactory, cfg SessionConfig, logger *slog.Logger) *TokenSession {
	if logger == nil {
		logger = slog.Default()
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	timeout := cfg.InteractiveTimeout
	if timeout <= 0 {
		timeout = DefaultInteractiveTimeout
	}
	return &TokenSession{
		factory:            factory,
		scopes:             scopes,
		interactiveTimeout: timeout,
		logger:             logger,
		state:              model.SessionUninitialized,
		events:             make(chan model.SessionEvent, eventBuffer),
	}
}

// Initialize constructs the identity provider and restores a cached account
// if one exists. A factory failure leaves the session in SessionError, which
// is terminal. Calling Initialize again after the first call is a no-op.
func (s *TokenSession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != model.SessionUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = model.SessionInitializing
	s.mu.Unlock()

	provider, err := s.factory(ctx)
	if err != nil {
		s.setState(model.SessionError)
		s.logger.Error("identity provider construction failed", "error", err)
		return fmt.Errorf("%w: %w", model.ErrAuthInit, err)
	}

	accounts, err := provider.Accounts(ctx)

	s.mu.Lock()
	s.provider = provider
	if err != nil || len(accounts) == 0 {
		s.state = model.SessionReady
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("cached account lookup failed", "error", err)
			return fmt.Errorf("%w: listing cached accounts: %w", model.ErrAuthInit, err)
		}
		s.logger.Info("session ready, no cached account")
		return nil
	}

	s.account = accounts[0]
	s.state = model.SessionAuthenticated
	s.mu.Unlock()

	s.logger.Info("session restored from cache", "username", accounts[0].Username, "accounts", len(accounts))
	s.publish(model.SessionEvent{Kind: model.SessionEventAuthenticated, Account: accounts[0]})
	return nil
}

// Login runs an interactive sign-in. On success the session becomes
// authenticated and an authenticated event is published. On failure the
// previous state is kept.
func (s *TokenSession) Login(ctx context.Context) (model.Account, error) {
	provider, state, current := s.snapshot()
	if provider == nil {
		return model.Account{}, fmt.Errorf("%w: session is %s", model.ErrAuthInit, state)
	}

	result, err := s.acquireInteractive(ctx, provider, current.Username)
	if errors.Is(err, model.ErrInteractionInProgress) {
		return model.Account{}, err
	}
	if err != nil {
		s.logger.Warn("interactive login failed", "error", err)
		return model.Account{}, fmt.Errorf("%w: %w", model.ErrLogin, err)
	}

	s.mu.Lock()
	s.account = result.Account
	s.state = model.SessionAuthenticated
	s.mu.Unlock()

	s.logger.Info("signed in", "username", result.Account.Username)
	s.publish(model.SessionEvent{Kind: model.SessionEventAuthenticated, Account: result.Account})
	return result.Account, nil
}

// Logout signs the current account out. Local state is cleared and a
// signed-out event published even when the provider fails.
func (s *TokenSession) Logout(ctx context.Context) error {
	provider, _, account := s.snapshot()
	if provider == nil || account.IsZero() {
		return model.ErrNotAuthenticated
	}

	err := provider.Logout(ctx, account)

	s.mu.Lock()
	s.account = model.Account{}
	s.state = model.SessionReady
	s.mu.Unlock()

	s.publish(model.SessionEvent{Kind: model.SessionEventSignedOut, Account: account})

	if err != nil {
		s.logger.Warn("logout failed, local session cleared", "username", account.Username, "error", err)
		return fmt.Errorf("%w: %w", model.ErrLogout, err)
	}
	s.logger.Info("signed out", "username", account.Username)
	return nil
}

// AccessToken returns a bearer token for the signed-in account. A silent
// acquisition is tried first, then one interactive attempt. When both fail
// the error wraps ErrTokenUnavailable.
func (s *TokenSession) AccessToken(ctx context.Context) (string, error) {
	provider, _, account := s.snapshot()
	if provider == nil || account.IsZero() {
		return "", model.ErrNotAuthenticated
	}

	result, err := provider.AcquireTokenSilent(ctx, s.scopes, account)
	metrics.TokenAcquisitions.WithLabelValues("silent", metrics.Result(err)).Inc()
	if err == nil {
		return result.AccessToken, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	s.logger.Warn("silent token acquisition failed, falling back to interactive", "username", account.Username, "error", err)

	result, err = s.acquireInteractive(ctx, provider, account.Username)
	if err != nil {
		s.logger.Error("interactive token acquisition failed", "username", account.Username, "error", err)
		return "", fmt.Errorf("%w: %w", model.ErrTokenUnavailable, err)
	}

	if !result.Account.IsZero() {
		s.mu.Lock()
		s.account = result.Account
		s.mu.Unlock()
	}
	return result.AccessToken, nil
}

// State returns the current lifecycle state.
func (s *TokenSession) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the signed-in account, or the zero Account.
func (s *TokenSession) Account() model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Authenticated reports whether an account is signed in.
func (s *TokenSession) Authenticated() bool {
	return s.State() == model.SessionAuthenticated
}

// Interacting reports whether an interactive sign-in is waiting on the
// operator.
func (s *TokenSession) Interacting() bool {
	return s.interacting.Load()
}

// Events returns the channel on which sign-in and sign-out events are
// published. There is a single consumer.
func (s *TokenSession) Events() <-chan model.SessionEvent {
	return s.events
}

// acquireInteractive runs one interactive flow bounded by the interactive
// timeout. Only one flow may be open at a time.
func (s *TokenSession) acquireInteractive(ctx context.Context, provider driven.IdentityProvider, loginHint string) (model.AuthResult, error) {
	if !s.interacting.CompareAndSwap(false, true) {
		return model.AuthResult{}, model.ErrInteractionInProgress
	}
	defer s.interacting.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.interactiveTimeout)
	defer cancel()

	result, err := provider.AcquireTokenInteractive(ctx, s.scopes, loginHint)
	metrics.TokenAcquisitions.WithLabelValues("interactive", metrics.Result(err)).Inc()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.AuthResult{}, fmt.Errorf("interactive flow not completed within %s: %w", s.interactiveTimeout, err)
	}
	return result, err
}

func (s *TokenSession) snapshot() (driven.IdentityProvider, model.SessionState, model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider, s.state, s.account
}

func (s *TokenSession) setState(state model.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *TokenSession) publish(ev model.SessionEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session event dropped, buffer full", "kind", string(ev.Kind))
	}
}
