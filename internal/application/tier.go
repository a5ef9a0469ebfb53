package application

import "github.com/ericfisherdev/credwatch/internal/domain/model"

// ExpiryTier classifies a row by how urgently its credential needs rotation.
type ExpiryTier int

const (
	// TierExpired indicates the credential expired before today.
	TierExpired ExpiryTier = iota
	// TierCritical indicates expiry within a week.
	TierCritical
	// TierWarning indicates expiry within the default threshold.
	TierWarning
	// TierHealthy indicates expiry beyond the default threshold.
	TierHealthy
)

// Tier boundaries in days to expiry, inclusive.
const (
	criticalDays = 7
	warningDays  = model.DefaultThresholdDays
)

// String returns a human-readable name for the tier. The value doubles as
// the CSS modifier in the dashboard.
func (t ExpiryTier) String() string {
	switch t {
	case TierExpired:
		return "expired"
	case TierCritical:
		return "critical"
	case TierWarning:
		return "warning"
	case TierHealthy:
		return "healthy"
	default:
		return "unknown"
	}
}

// ClassifyExpiry returns the tier for a days-to-expiry value.
func ClassifyExpiry(days int) ExpiryTier {
	switch {
	case days < 0:
		return TierExpired
	case days <= criticalDays:
		return TierCritical
	case days <= warningDays:
		return TierWarning
	default:
		return TierHealthy
	}
}

// Summary counts rows per tier for the dashboard header.
type Summary struct {
	Total    int
	Expired  int
	Critical int
	Warning  int
	Healthy  int
}

// Summarize tallies rows by tier.
func Summarize(rows []model.Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch ClassifyExpiry(r.DaysToExpiry) {
		case TierExpired:
			s.Expired++
		case TierCritical:
			s.Critical++
		case TierWarning:
			s.Warning++
		default:
			s.Healthy++
		}
	}
	return s
}
