package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SessionResponse describes the operator's sign-in state.
type SessionResponse struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// SnapshotResponse is the merged application listing.
type SnapshotResponse struct {
	FetchedAt    string                `json:"fetched_at,omitempty"`
	Generation   uint64                `json:"generation"`
	Error        string                `json:"error,omitempty"`
	Applications []ApplicationResponse `json:"applications"`
}

// ApplicationResponse is the JSON representation of an application registration.
type ApplicationResponse struct {
	ID           string               `json:"id"`
	AppID        string               `json:"app_id"`
	DisplayName  string               `json:"display_name"`
	Notes        string               `json:"notes,omitempty"`
	Secrets      []CredentialResponse `json:"secrets"`
	Certificates []CredentialResponse `json:"certificates"`
}

// CredentialResponse is the JSON representation of a secret or certificate.
type CredentialResponse struct {
	KeyID         string `json:"key_id"`
	DisplayName   string `json:"display_name"`
	Hint          string `json:"hint,omitempty"`
	StartDateTime string `json:"start_date_time,omitempty"`
	EndDateTime   string `json:"end_date_time"`
}

// CredentialsResponse is the projected expiry table.
type CredentialsResponse struct {
	Threshold int             `json:"threshold"`
	Mode      string          `json:"mode"`
	AsOf      string          `json:"as_of"`
	Summary   SummaryResponse `json:"summary"`
	Rows      []RowResponse   `json:"rows"`
	Error     string          `json:"error,omitempty"` // last refresh failure; rows are empty
}

// SummaryResponse counts rows by expiry tier.
type SummaryResponse struct {
	Total    int `json:"total"`
	Expired  int `json:"expired"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Healthy  int `json:"healthy"`
}

// RowResponse is one row of the expiry table.
type RowResponse struct {
	ApplicationID   string `json:"application_id"`
	ApplicationName string `json:"application_name"`
	Type            string `json:"type"`
	KeyID           string `json:"key_id"`
	DisplayName     string `json:"display_name"`
	EndDateTime     string `json:"end_date_time"`
	DaysToExpiry    int    `json:"days_to_expiry"`
	Tier            string `json:"tier"`
}

// RefreshResponse reports the snapshot produced by a manual refresh.
type RefreshResponse struct {
	FetchedAt    string `json:"fetched_at,omitempty"`
	Generation   uint64 `json:"generation"`
	Applications int    `json:"applications"`
}

func toApplicationResponse(app model.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:           app.ID,
		AppID:        app.AppID,
		DisplayName:  app.DisplayName,
		Notes:        app.Notes,
		Secrets:      toCredentialResponses(app.Secrets),
		Certificates: toCredentialResponses(app.Certificates),
	}
}

func toCredentialResponses(creds []model.Credential) []CredentialResponse {
	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		cr := CredentialResponse{
			KeyID:       c.KeyID,
			DisplayName: c.DisplayName,
			Hint:        c.Hint,
			EndDateTime: formatTime(c.EndDateTime),
		}
		if !c.StartDateTime.IsZero() {
			cr.StartDateTime = formatTime(c.StartDateTime)
		}
		resp = append(resp, cr)
	}
	return resp
}

func toRowResponse(r model.Row) RowResponse {
	return RowResponse{
		ApplicationID:   r.ApplicationID,
		ApplicationName: r.ApplicationName,
		Type:            string(r.Type),
		KeyID:           r.KeyID,
		DisplayName:     r.DisplayName,
		EndDateTime:     formatTime(r.EndDateTime),
		DaysToExpiry:    r.DaysToExpiry,
		Tier:            application.ClassifyExpiry(r.DaysToExpiry).String(),
	}
}

func toSummaryResponse(s application.Summary) SummaryResponse {
	return SummaryResponse{
		Total:    s.Total,
		Expired:  s.Expired,
		Critical: s.Critical,
		Warning:  s.Warning,
		Healthy:  s.Healthy,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
