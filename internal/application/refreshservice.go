// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
	"github.com/ericfisherdev/credwatch/internal/metrics"
)

// SessionSource is the view of the token session the refresh service needs.
type SessionSource interface {
	Authenticated() bool
	Events() <-chan model.SessionEvent
}

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	done chan error
}

// Snapshot is the most recent aggregation result.
type Snapshot struct {
	Applications []model.Application
	FetchedAt    time.Time // Zero until the first successful refresh.
	Generation   uint64
	Err          error // Error from the last refresh attempt, if it failed.
}

// RefreshService keeps the application snapshot current. It refreshes when
// the session signs in, on an optional interval while signed in, and on
// manual request. All refreshes run on the Start goroutine, one at a time.
type RefreshService struct {
	session    SessionSource
	client     driven.DirectoryClient
	aggregator *Aggregator
	clock      clock.Clock
	interval   time.Duration
	logger     *slog.Logger
	refreshCh  chan refreshRequest

	mu         sync.RWMutex
	snapshot   Snapshot
	generation uint64
}

// NewRefreshService creates a RefreshService. An interval of zero disables
// periodic refresh.
func NewRefreshService(
	session SessionSource,
	client driven.DirectoryClient,
	aggregator *Aggregator,
	clk clock.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *RefreshService {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshService{
		session:    session,
		client:     client,
		aggregator: aggregator,
		clock:      clk,
		interval:   interval,
		logger:     logger,
		refreshCh:  make(chan refreshRequest),
	}
}

// Start runs the refresh loop until ctx is canceled.
func (s *RefreshService) Start(ctx context.Context) {
	var tick <-chan time.Time
	var timer clock.Timer
	if s.interval > 0 {
		timer = s.clock.NewTimer(s.interval)
		defer timer.Stop()
		tick = timer.Chan()
	}

	events := s.session.Events()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh service stopped")
			return
		case ev := <-events:
			s.handleEvent(ctx, ev)
		case <-tick:
			if s.session.Authenticated() {
				if err := s.refresh(ctx); err != nil {
					s.logger.Error("periodic refresh failed", "error", err)
				}
			}
			timer.Reset(s.interval)
		case req := <-s.refreshCh:
			req.done <- s.refresh(ctx)
		}
	}
}

// Refresh triggers a refresh outside the interval. It blocks until the
// refresh completes or ctx is canceled.
func (s *RefreshService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- refreshRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear drops the snapshot and any cached directory responses. A refresh in
// flight when Clear is called is discarded when it completes.
func (s *RefreshService) Clear() {
	s.mu.Lock()
	s.generation++
	s.snapshot = Snapshot{Generation: s.generation}
	s.mu.Unlock()

	if r, ok := s.client.(driven.CacheResetter); ok {
		r.ResetCache()
	}

	setInventoryGauges(nil)
	s.logger.Info("snapshot cleared")
}

// Snapshot returns the current snapshot.
func (s *RefreshService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Application returns the application with the given directory object ID
// from the current snapshot.
func (s *RefreshService) Application(id string) (model.Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.snapshot.Applications {
		if app.ID == id {
			return app, true
		}
	}
	return model.Application{}, false
}

func (s *RefreshService) handleEvent(ctx context.Context, ev model.SessionEvent) {
	switch ev.Kind {
	case model.SessionEventAuthenticated:
		s.logger.Info("session authenticated, refreshing", "username", ev.Account.Username)
		if err := s.refresh(ctx); err != nil {
			s.logger.Error("refresh after sign-in failed", "error", err)
		}
	case model.SessionEventSignedOut:
		s.Clear()
	}
}

// refresh runs one aggregation and stores the result unless the snapshot
// was cleared while it ran.
func (s *RefreshService) refresh(ctx context.Context) error {
	if !s.session.Authenticated() {
		return model.ErrNotAuthenticated
	}

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	start := time.Now()
	apps, err := s.aggregator.FetchAll(ctx, s.client)
	metrics.ObserveDuration(metrics.RefreshDuration, start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("discarding stale refresh result", "started_generation", gen, "current_generation", s.generation)
		return nil
	}

	s.generation++

	// A failed run replaces the snapshot so no stale table outlives it.
	if err != nil {
		s.snapshot = Snapshot{Generation: s.generation, Err: err}
		setInventoryGauges(nil)
		return err
	}

	s.snapshot = Snapshot{
		Applications: apps,
		FetchedAt:    s.clock.Now(),
		Generation:   s.generation,
	}
	setInventoryGauges(apps)
	metrics.LastRefreshTimestamp.Set(float64(s.snapshot.FetchedAt.Unix()))

	return nil
}

func setInventoryGauges(apps []model.Application) {
	var nSecrets, nCerts int
	for _, app := range apps {
		nSecrets += len(app.Secrets)
		nCerts += len(app.Certificates)
	}
	metrics.ApplicationsTotal.Set(float64(len(apps)))
	metrics.CredentialsTotal.WithLabelValues(string(model.CredentialSecret)).Set(float64(nSecrets))
	metrics.CredentialsTotal.WithLabelValues(string(model.CredentialCertificate)).Set(float64(nCerts))
}
