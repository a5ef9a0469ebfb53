package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// Session is the read-only view of the token session the API exposes.
type Session interface {
	State() model.SessionState
	Account() model.Account
}

// Refresher provides the application snapshot and manual refresh.
type Refresher interface {
	Snapshot() application.Snapshot
	Refresh(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
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

// RegisterAPIRoutes registers the JSON API and the metrics endpoint on mux.
// POST routes reject cross-origin browser requests, so a page on another
// site cannot make the signed-in dashboard spend Graph quota. Scripts
// without Origin or Sec-Fetch-Site headers are unaffected.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	sameOrigin := http.NewCrossOriginProtection()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("GET /api/v1/applications", h.ListApplications)
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.Handle("POST /api/v1/refresh", sameOrigin.Handler(http.HandlerFunc(h.Refresh)))
	mux.Handle("GET /metrics", promhttp.Handler())
}

// ApplyMiddleware wraps handler with recovery and request logging.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSession returns the sign-in state.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	state := h.session.State()
	writeJSON(w, http.StatusOK, SessionResponse{
		State:         string(state),
		Authenticated: state == model.SessionAuthenticated,
		Username:      h.session.Account().Username,
	})
}

// ListApplications returns the current snapshot with all credentials.
func (h *Handler) ListApplications(w http.ResponseWriter, _ *http.Request) {
	snap := h.refresher.Snapshot()

	resp := SnapshotResponse{
		Generation:   snap.Generation,
		Applications: make([]ApplicationResponse, 0, len(snap.Applications)),
	}
	if !snap.FetchedAt.IsZero() {
		resp.FetchedAt = snap.FetchedAt.UTC().Format(time.RFC3339)
	}
	apps := snap.Applications
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
		apps = nil
	}
	for _, app := range apps {
		resp.Applications = append(resp.Applications, toApplicationResponse(app))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCredentials returns expiry rows for the current snapshot. The threshold
// and mode query parameters override the operator's settings for this
// request only; as_of evaluates expiry at the given RFC 3339 instant.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := h.viewModel.Threshold()
	if v := q.Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid threshold: expected an integer number of days")
			return
		}
		threshold = n
	}

	mode := h.viewModel.Mode()
	if v := q.Get("mode"); v != "" {
		m, err := model.ParseFilterMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid mode: expected all, secrets or certificates")
			return
		}
		mode = m
	}

	asOf := h.viewModel.Now()
	if v := q.Get("as_of"); v != "" {
		t, err := model.ParseExpiry(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of: expected an RFC 3339 timestamp")
			return
		}
		asOf = t
	}

	// Rows are never projected from a snapshot whose last refresh failed.
	snap := h.refresher.Snapshot()
	apps := snap.Applications
	if snap.Err != nil {
		apps = nil
	}
	rows := application.Project(apps, threshold, mode, asOf)

	resp := CredentialsResponse{
		Threshold: threshold,
		Mode:      string(mode),
		AsOf:      asOf.UTC().Format(time.RFC3339),
		Summary:   toSummaryResponse(application.Summarize(rows)),
		Rows:      make([]RowResponse, 0, len(rows)),
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, toRowResponse(row))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh runs a refresh and waits for it to finish.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.refresher.Refresh(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	case errors.Is(err, model.ErrFetchApplications):
		h.logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "directory request failed")
		return
	default:
		h.logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	snap := h.refresher.Snapshot()
	resp := RefreshResponse{
		Generation:   snap.Generation,
		Applications: len(snap.Applications),
	}
	if !snap.FetchedAt.IsZero() {
		resp.FetchedAt = snap.FetchedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
