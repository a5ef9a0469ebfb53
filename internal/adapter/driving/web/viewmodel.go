package web

import (
	"fmt"
	"net/url"
	"time"

	vm "github.com/ericfisherdev/credwatch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

const dateLayout = "2006-01-02"

var modeLabels = []struct {
	mode  model.FilterMode
	label string
}{
	{model.FilterAll, "Secrets and certificates"},
	{model.FilterSecrets, "Secrets only"},
	{model.FilterCertificates, "Certificates only"},
}

// toSessionViewModel converts the session state into header data.
func toSessionViewModel(state model.SessionState, account model.Account, signingIn bool) vm.SessionViewModel {
	return vm.SessionViewModel{
		State:         string(state),
		Authenticated: state == model.SessionAuthenticated,
		Username:      account.Username,
		SigningIn:     signingIn,
		Unavailable:   state == model.SessionError,
	}
}

// toDashboardViewModel converts a snapshot and its projected rows into the
// dashboard view model.
func toDashboardViewModel(
	snap application.Snapshot,
	rows []model.Row,
	threshold int,
	mode model.FilterMode,
) vm.DashboardViewModel {
	modes := make([]vm.ModeOption, 0, len(modeLabels))
	for _, m := range modeLabels {
		modes = append(modes, vm.ModeOption{
			Value:    string(m.mode),
			Label:    m.label,
			Selected: m.mode == mode,
		})
	}

	// A failed refresh renders the error state, never a table.
	if snap.Err != nil {
		snap.Applications = nil
		snap.FetchedAt = time.Time{}
		rows = nil
	}

	summary := application.Summarize(rows)

	d := vm.DashboardViewModel{
		Threshold:    threshold,
		Modes:        modes,
		Loaded:       !snap.FetchedAt.IsZero(),
		Applications: len(snap.Applications),
		Summary: vm.SummaryViewModel{
			Total:    summary.Total,
			Expired:  summary.Expired,
			Critical: summary.Critical,
			Warning:  summary.Warning,
		},
		Rows: make([]vm.RowViewModel, 0, len(rows)),
	}
	if d.Loaded {
		d.FetchedAt = snap.FetchedAt.Local().Format("2006-01-02 15:04:05")
	}
	if snap.Err != nil {
		d.RefreshError = snap.Err.Error()
	}

	for _, r := range rows {
		d.Rows = append(d.Rows, vm.RowViewModel{
			ApplicationName: r.ApplicationName,
			DetailPath:      applicationPath(r.ApplicationID),
			TypeLabel:       kindLabel(r.Type),
			DisplayName:     displayNameOrKey(r.DisplayName, r.KeyID),
			KeyID:           r.KeyID,
			EndDate:         r.EndDateTime.UTC().Format(dateLayout),
			DaysToExpiry:    r.DaysToExpiry,
			DaysLabel:       daysLabel(r.DaysToExpiry),
			Tier:            application.ClassifyExpiry(r.DaysToExpiry).String(),
		})
	}

	return d
}

// toApplicationDetailViewModel lists every credential of app regardless of
// the dashboard threshold.
func toApplicationDetailViewModel(app model.Application, now time.Time) vm.ApplicationDetailViewModel {
	d := vm.ApplicationDetailViewModel{
		ID:          app.ID,
		AppID:       app.AppID,
		DisplayName: app.DisplayName,
		NotesHTML:   RenderMarkdown(app.Notes),
		Credentials: make([]vm.CredentialViewModel, 0, app.CredentialCount()),
	}

	add := func(c model.Credential) {
		days := model.DaysToExpiry(c.EndDateTime, now)
		cv := vm.CredentialViewModel{
			TypeLabel:   kindLabel(c.Kind),
			DisplayName: displayNameOrKey(c.DisplayName, c.KeyID),
			KeyID:       c.KeyID,
			Hint:        c.Hint,
			EndDate:     c.EndDateTime.UTC().Format(dateLayout),
			DaysLabel:   daysLabel(days),
			Tier:        application.ClassifyExpiry(days).String(),
		}
		if !c.StartDateTime.IsZero() {
			cv.StartDate = c.StartDateTime.UTC().Format(dateLayout)
		}
		d.Credentials = append(d.Credentials, cv)
	}
	for _, c := range app.Secrets {
		add(c)
	}
	for _, c := range app.Certificates {
		add(c)
	}

	return d
}

func applicationPath(id string) string {
	return "/app/applications/" + url.PathEscape(id)
}

func kindLabel(kind model.CredentialKind) string {
	if kind == model.CredentialCertificate {
		return "Certificate"
	}
	return "Secret"
}

func displayNameOrKey(name, keyID string) string {
	if name != "" {
		return name
	}
	return keyID
}

// daysLabel renders a days-to-expiry value for humans.
func daysLabel(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("expired %d days ago", -days)
	case days == -1:
		return "expired yesterday"
	case days == 0:
		return "expires today"
	case days == 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
