package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
)

// --- Mock identity provider ---

type mockIdentityProvider struct {
	mu sync.Mutex

	accounts    []model.Account
	accountsErr error

	silent      func(account model.Account) (model.AuthResult, error)
	interactive func(ctx context.Context, loginHint string) (model.AuthResult, error)
	logoutErr   error

	silentCalls      int
	interactiveCalls int
	logoutCalls      []model.Account
	lastScopes       []string
}

func (m *mockIdentityProvider) Accounts(_ context.Context) ([]model.Account, error) {
	return m.accounts, m.accountsErr
}

func (m *mockIdentityProvider) AcquireTokenSilent(_ context.Context, scopes []string, account model.Account) (model.AuthResult, error) {
	m.mu.Lock()
	m.silentCalls++
	m.lastScopes = scopes
	m.mu.Unlock()
	if m.silent == nil {
		return model.AuthResult{}, errors.New("no cached token")
	}
	return m.silent(account)
}

func (m *mockIdentityProvider) AcquireTokenInteractive(ctx context.Context, scopes []string, loginHint string) (model.AuthResult, error) {
	m.mu.Lock()
	m.interactiveCalls++
	m.lastScopes = scopes
	interactive := m.interactive
	m.mu.Unlock()
	if interactive == nil {
		return model.AuthResult{}, errors.New("user cancelled")
	}
	return interactive(ctx, loginHint)
}

func (m *mockIdentityProvider) Logout(_ context.Context, account model.Account) error {
	m.mu.Lock()
	m.logoutCalls = append(m.logoutCalls, account)
	m.mu.Unlock()
	return m.logoutErr
}

func factoryFor(p driven.IdentityProvider) driven.IdentityProviderFactory {
	return func(_ context.Context) (driven.IdentityProvider, error) {
		return p, nil
	}
}

var alice = model.Account{HomeAccountID: "uid.tid", Username: "alice@contoso.com", TenantID: "tid"}

func newReadySession(t *testing.T, p *mockIdentityProvider) *application.TokenSession {
	t.Helper()
	s := application.NewTokenSession(factoryFor(p), application.SessionConfig{}, nil)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func drainEvent(t *testing.T, s *application.TokenSession) model.SessionEvent {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	default:
		t.Fatal("expected a session event")
		return model.SessionEvent{}
	}
}

func assertNoEvent(t *testing.T, s *application.TokenSession) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected session event %v", ev)
	default:
	}
}

// --- Initialize ---

func TestTokenSession_InitialState(t *testing.T) {
	s := application.NewTokenSession(factoryFor(&mockIdentityProvider{}), application.SessionConfig{}, nil)
	assert.Equal(t, model.SessionUninitialized, s.State())
	assert.True(t, s.Account().IsZero())
}

func TestTokenSession_Initialize_NoCachedAccount(t *testing.T) {
	s := newReadySession(t, &mockIdentityProvider{})

	assert.Equal(t, model.SessionReady, s.State())
	assert.False(t, s.Authenticated())
	assertNoEvent(t, s)
}

func TestTokenSession_Initialize_RestoresCachedAccount(t *testing.T) {
	other := model.Account{HomeAccountID: "b", Username: "bob@contoso.com"}
	p := &mockIdentityProvider{accounts: []model.Account{alice, other}}
	s := newReadySession(t, p)

	assert.Equal(t, model.SessionAuthenticated, s.State())
	assert.Equal(t, alice, s.Account())
	assert.Zero(t, p.interactiveCalls, "restoring a cached account must not prompt")

	ev := drainEvent(t, s)
	assert.Equal(t, model.SessionEventAuthenticated, ev.Kind)
	assert.Equal(t, alice, ev.Account)
}

func TestTokenSession_Initialize_FactoryFailureIsTerminal(t *testing.T) {
	factory := func(_ context.Context) (driven.IdentityProvider, error) {
		return nil, errors.New("bad authority")
	}
	s := application.NewTokenSession(factory, application.SessionConfig{}, nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAuthInit))
	assert.Equal(t, model.SessionError, s.State())

	_, err = s.Login(context.Background())
	assert.True(t, errors.Is(err, model.ErrAuthInit))
	assert.Equal(t, model.SessionError, s.State())
}

func TestTokenSession_Initialize_AccountLookupFailure(t *testing.T) {
	p := &mockIdentityProvider{accountsErr: errors.New("cache corrupt")}
	s := application.NewTokenSession(factoryFor(p), application.SessionConfig{}, nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAuthInit))
	assert.Equal(t, model.SessionReady, s.State())
}

func TestTokenSession_Initialize_Once(t *testing.T) {
	var calls int
	factory := func(_ context.Context) (driven.IdentityProvider, error) {
		calls++
		return &mockIdentityProvider{}, nil
	}
	s := application.NewTokenSession(factory, application.SessionConfig{}, nil)

	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, calls)
}

// --- Login ---

func TestTokenSession_Login_Success(t *testing.T) {
	p := &mockIdentityProvider{
		interactive: func(_ context.Context, _ string) (model.AuthResult, error) {
			return model.AuthResult{AccessToken: "tok", Account: alice}, nil
		},
	}
	s := newReadySession(t, p)

	acct, err := s.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, acct)
	assert.Equal(t, model.SessionAuthenticated, s.State())
	assert.Equal(t, alice, s.Account())
	assert.Equal(t, []string{"Directory.Read.All"}, p.lastScopes)

	ev := drainEvent(t, s)
	assert.Equal(t, model.SessionEventAuthenticated, ev.Kind)
}

func TestTokenSession_Login_FailureStaysReady(t *testing.T) {
	p := &mockIdentityProvider{}
	s := newReadySession(t, p)

	_, err := s.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLogin))
	assert.Equal(t, model.SessionReady, s.State())
	assert.True(t, s.Account().IsZero())
	assertNoEvent(t, s)
}

func TestTokenSession_Login_RejectsConcurrentInteraction(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := &mockIdentityProvider{
		interactive: func(_ context.Context, _ string) (model.AuthResult, error) {
			close(started)
			<-release
			return model.AuthResult{AccessToken: "tok", Account: alice}, nil
		},
	}
	s := newReadySession(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background())
		done <- err
	}()
	<-started

	_, err := s.Login(context.Background())
	assert.True(t, errors.Is(err, model.ErrInteractionInProgress))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, p.interactiveCalls)
}

func TestTokenSession_Login_CustomScopes(t *testing.T) {
	p := &mockIdentityProvider{
		interactive: func(_ context.Context, _ string) (model.AuthResult, error) {
			return model.AuthResult{Account: alice}, nil
		},
	}
	s := application.NewTokenSession(factoryFor(p), application.SessionConfig{Scopes: []string{"Application.Read.All"}}, nil)
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Application.Read.All"}, p.lastScopes)
}

// --- Logout ---

func TestTokenSession_Logout(t *testing.T) {
	p := &mockIdentityProvider{accounts: []model.Account{alice}}
	s := newReadySession(t, p)
	drainEvent(t, s)

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, model.SessionReady, s.State())
	assert.True(t, s.Account().IsZero())
	require.Len(t, p.logoutCalls, 1)
	assert.Equal(t, alice, p.logoutCalls[0])

	ev := drainEvent(t, s)
	assert.Equal(t, model.SessionEventSignedOut, ev.Kind)
	assert.Equal(t, alice, ev.Account)
}

func TestTokenSession_Logout_ProviderFailureStillClears(t *testing.T) {
	p := &mockIdentityProvider{accounts: []model.Account{alice}, logoutErr: errors.New("browser unavailable")}
	s := newReadySession(t, p)
	drainEvent(t, s)

	err := s.Logout(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLogout))
	assert.Equal(t, model.SessionReady, s.State())
	assert.True(t, s.Account().IsZero())
	assert.Equal(t, model.SessionEventSignedOut, drainEvent(t, s).Kind)
}

func TestTokenSession_Logout_NotAuthenticated(t *testing.T) {
	s := newReadySession(t, &mockIdentityProvider{})
	err := s.Logout(context.Background())
	assert.True(t, errors.Is(err, model.ErrNotAuthenticated))
}

// --- AccessToken ---

func TestTokenSession_AccessToken_Silent(t *testing.T) {
	p := &mockIdentityProvider{
		accounts: []model.Account{alice},
		silent: func(account model.Account) (model.AuthResult, error) {
			assert.Equal(t, alice, account)
			return model.AuthResult{AccessToken: "silent-token", Account: account}, nil
		},
	}
	s := newReadySession(t, p)

	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "silent-token", tok)
	assert.Equal(t, 1, p.silentCalls)
	assert.Zero(t, p.interactiveCalls)
}

func TestTokenSession_AccessToken_FallsBackToInteractiveOnce(t *testing.T) {
	var hint string
	p := &mockIdentityProvider{
		accounts: []model.Account{alice},
		interactive: func(_ context.Context, loginHint string) (model.AuthResult, error) {
			hint = loginHint
			return model.AuthResult{AccessToken: "interactive-token", Account: alice}, nil
		},
	}
	s := newReadySession(t, p)

	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "interactive-token", tok)
	assert.Equal(t, 1, p.silentCalls)
	assert.Equal(t, 1, p.interactiveCalls)
	assert.Equal(t, alice.Username, hint)
}

func TestTokenSession_AccessToken_BothFail(t *testing.T) {
	p := &mockIdentityProvider{accounts: []model.Account{alice}}
	s := newReadySession(t, p)

	tok, err := s.AccessToken(context.Background())
	require.Error(t, err)
	assert.Empty(t, tok)
	assert.True(t, errors.Is(err, model.ErrTokenUnavailable))
	assert.Equal(t, 1, p.interactiveCalls)
	assert.Equal(t, model.SessionAuthenticated, s.State())
}

func TestTokenSession_AccessToken_NotAuthenticated(t *testing.T) {
	p := &mockIdentityProvider{}
	s := newReadySession(t, p)

	_, err := s.AccessToken(context.Background())
	assert.True(t, errors.Is(err, model.ErrNotAuthenticated))
	assert.Zero(t, p.silentCalls)
}

func TestTokenSession_InteractingDuringLogin(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := &mockIdentityProvider{
		interactive: func(_ context.Context, _ string) (model.AuthResult, error) {
			close(started)
			<-release
			return model.AuthResult{Account: alice}, nil
		},
	}
	s := newReadySession(t, p)
	assert.False(t, s.Interacting())

	done := make(chan struct{})
	go func() {
		_, _ = s.Login(context.Background())
		close(done)
	}()
	<-started
	assert.True(t, s.Interacting())

	close(release)
	<-done
	assert.False(t, s.Interacting())
}

// abandonedFlow blocks like a browser tab the operator never completes.
func abandonedFlow(ctx context.Context, _ string) (model.AuthResult, error) {
	<-ctx.Done()
	return model.AuthResult{}, ctx.Err()
}

func TestTokenSession_AccessToken_AbandonedInteractiveFlowTimesOut(t *testing.T) {
	p := &mockIdentityProvider{accounts: []model.Account{alice}, interactive: abandonedFlow}
	s := application.NewTokenSession(factoryFor(p), application.SessionConfig{InteractiveTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, s.Initialize(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := s.AccessToken(context.Background())
		errCh <- err
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, model.ErrTokenUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("AccessToken did not return after the interactive timeout")
	}
	assert.False(t, s.Interacting())

	// The operator can sign in again once the abandoned flow is released.
	p.mu.Lock()
	p.interactive = func(_ context.Context, _ string) (model.AuthResult, error) {
		return model.AuthResult{AccessToken: "fresh", Account: alice}, nil
	}
	p.mu.Unlock()

	acct, err := s.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, acct)
}

func TestTokenSession_Login_AbandonedFlowTimesOut(t *testing.T) {
	p := &mockIdentityProvider{interactive: abandonedFlow}
	s := application.NewTokenSession(factoryFor(p), application.SessionConfig{InteractiveTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.Login(context.Background())
	assert.ErrorIs(t, err, model.ErrLogin)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, model.SessionReady, s.State())
	assert.False(t, s.Interacting())
}
