package application

import (
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

// Project flattens apps into expiry rows. A credential produces a row iff it
// is in scope of mode and expires within threshold days of now. Rows keep
// the application fetch order, secrets before certificates, and the API
// order of credentials within each kind. Project has no side effects.
func Project(apps []model.Application, threshold int, mode model.FilterMode, now time.Time) []model.Row {
	rows := []model.Row{}
	for _, app := range apps {
		if mode.Includes(model.CredentialSecret) {
			rows = appendRows(rows, app, model.CredentialSecret, app.Secrets, threshold, now)
		}
		if mode.Includes(model.CredentialCertificate) {
			rows = appendRows(rows, app, model.CredentialCertificate, app.Certificates, threshold, now)
		}
	}
	return rows
}

func appendRows(
	rows []model.Row,
	app model.Application,
	kind model.CredentialKind,
	creds []model.Credential,
	threshold int,
	now time.Time,
) []model.Row {
	for _, c := range creds {
		days := model.DaysToExpiry(c.EndDateTime, now)
		if days > threshold {
			continue
		}
		rows = append(rows, model.Row{
			ApplicationID:   app.ID,
			ApplicationName: app.DisplayName,
			Type:            kind,
			KeyID:           c.KeyID,
			DisplayName:     c.DisplayName,
			EndDateTime:     c.EndDateTime,
			DaysToExpiry:    days,
		})
	}
	return rows
}

// ExpiryViewModel holds the operator's threshold and filter mode and projects
// snapshots into rows against its clock.
type ExpiryViewModel struct {
	clock clock.Clock

	mu        sync.RWMutex
	threshold int
	mode      model.FilterMode
}

// NewExpiryViewModel creates a view model with the given initial threshold
// and FilterAll. A nil clock uses the wall clock.
func NewExpiryViewModel(clk clock.Clock, threshold int) *ExpiryViewModel {
	if clk == nil {
		clk = clock.WallClock
	}
	return &ExpiryViewModel{
		clock:     clk,
		threshold: threshold,
		mode:      model.FilterAll,
	}
}

// Threshold returns the current expiry window in days.
func (v *ExpiryViewModel) Threshold() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.threshold
}

// SetThreshold changes the expiry window.
func (v *ExpiryViewModel) SetThreshold(days int) {
	v.mu.Lock()
	v.threshold = days
	v.mu.Unlock()
}

// Mode returns the current filter mode.
func (v *ExpiryViewModel) Mode() model.FilterMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mode
}

// SetMode changes the filter mode.
func (v *ExpiryViewModel) SetMode(mode model.FilterMode) {
	v.mu.Lock()
	v.mode = mode
	v.mu.Unlock()
}

// Now returns the view model's current time.
func (v *ExpiryViewModel) Now() time.Time {
	return v.clock.Now()
}

// Rows projects apps with the current threshold and mode.
func (v *ExpiryViewModel) Rows(apps []model.Application) []model.Row {
	v.mu.RLock()
	threshold, mode := v.threshold, v.mode
	v.mu.RUnlock()
	return Project(apps, threshold, mode, v.clock.Now())
}
