// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/credwatch/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/credwatch/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/credwatch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// Session is the part of the token session the GUI drives.
type Session interface {
	State() model.SessionState
	Account() model.Account
	Interacting() bool
	Login(ctx context.Context) (model.Account, error)
	Logout(ctx context.Context) error
}

// Refresher provides the application snapshot.
type Refresher interface {
	Snapshot() application.Snapshot
	Application(id string) (model.Application, bool)
	Refresh(ctx context.Context) error
	Clear()
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	session   Session
	refresher Refresher
	viewModel *application.ExpiryViewModel
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	session Session,
	refresher Refresher,
	viewModel *application.ExpiryViewModel,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		session:   session,
		refresher: refresher,
		viewModel: viewModel,
		logger:    logger,
	}
}

// Dashboard renders the expiry table with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := h.page(w, r, "Credential expiry")

	var body vm.DashboardViewModel
	if page.Session.Authenticated {
		snap := h.refresher.Snapshot()
		rows := h.viewModel.Rows(snap.Applications)
		body = toDashboardViewModel(snap, rows, h.viewModel.Threshold(), h.viewModel.Mode())
	}

	h.render(w, r, templates.Layout(page, pages.Dashboard(page, body)))
}

// ApplicationDetail renders a single application with all its credentials.
func (h *Handler) ApplicationDetail(w http.ResponseWriter, r *http.Request) {
	app, ok := h.refresher.Application(r.PathValue("id"))
	if !ok {
		http.Error(w, "application not found", http.StatusNotFound)
		return
	}

	page := h.page(w, r, app.DisplayName)
	detail := toApplicationDetailViewModel(app, h.viewModel.Now())
	h.render(w, r, templates.Layout(page, pages.ApplicationDetail(detail)))
}

// Login starts an interactive sign-in in the background and returns to the
// dashboard, which shows a waiting notice until the browser flow finishes.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	// The flow outlives this request; the session bounds its duration.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		acct, err := h.session.Login(ctx)
		if err != nil {
			if errors.Is(err, model.ErrInteractionInProgress) {
				h.logger.Info("sign-in already in progress")
				return
			}
			h.logger.Error("interactive sign-in failed", "error", err)
			return
		}
		h.logger.Info("interactive sign-in complete", "username", acct.Username)
	}()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout signs out, drops the snapshot and reloads the dashboard.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := h.session.Logout(r.Context()); err != nil && !errors.Is(err, model.ErrNotAuthenticated) {
		h.logger.Error("sign-out failed", "error", err)
	}
	h.refresher.Clear()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Filter updates the threshold and credential type filter.
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	threshold, err := strconv.Atoi(strings.TrimSpace(r.FormValue("threshold")))
	if err != nil {
		http.Error(w, "threshold must be a whole number of days", http.StatusBadRequest)
		return
	}

	mode, err := model.ParseFilterMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, "unknown credential filter", http.StatusBadRequest)
		return
	}

	h.viewModel.SetThreshold(threshold)
	h.viewModel.SetMode(mode)
	h.logger.Debug("filter updated", "threshold", threshold, "mode", string(mode))

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Refresh re-fetches the snapshot and reloads the dashboard. Failures are
// shown on the dashboard from the snapshot's error.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := h.refresher.Refresh(r.Context()); err != nil {
		h.logger.Warn("manual refresh failed", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, title string) vm.PageViewModel {
	return vm.PageViewModel{
		Title:     title + " · credwatch",
		CSRFToken: csrfToken(w, r),
		Session:   toSessionViewModel(h.session.State(), h.session.Account(), h.session.Interacting()),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
