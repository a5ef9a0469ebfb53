// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PageViewModel holds the data every page layout needs.
type PageViewModel struct {
	Title     string
	CSRFToken string
	Session   SessionViewModel
}

// SessionViewModel describes the sign-in state shown in the page header.
type SessionViewModel struct {
	State         string
	Authenticated bool
	Username      string
	SigningIn     bool // an interactive sign-in is waiting in the browser
	Unavailable   bool // the identity provider failed to initialise
}

// ModeOption is one entry in the credential type filter.
type ModeOption struct {
	Value    string
	Label    string
	Selected bool
}

// SummaryViewModel counts the visible rows by tier.
type SummaryViewModel struct {
	Total    int
	Expired  int
	Critical int
	Warning  int
}

// RowViewModel is one line of the expiry table.
type RowViewModel struct {
	ApplicationName string
	DetailPath      string
	TypeLabel       string
	DisplayName     string
	KeyID           string
	EndDate         string
	DaysToExpiry    int
	DaysLabel       string
	Tier            string // CSS modifier: expired, critical, warning or healthy
}

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Threshold int
	Modes     []ModeOption

	Loaded       bool // a snapshot has been fetched since sign-in
	FetchedAt    string
	Applications int
	RefreshError string

	Summary SummaryViewModel
	Rows    []RowViewModel
}

// CredentialViewModel is one credential on the application detail page.
type CredentialViewModel struct {
	TypeLabel   string
	DisplayName string
	KeyID       string
	Hint        string
	StartDate   string
	EndDate     string
	DaysLabel   string
	Tier        string
}

// ApplicationDetailViewModel holds the data for a single application page.
type ApplicationDetailViewModel struct {
	ID          string
	AppID       string
	DisplayName string
	NotesHTML   string // sanitised HTML, empty when the registration has no notes
	Credentials []CredentialViewModel
}
