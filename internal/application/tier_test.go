package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

func TestClassifyExpiry(t *testing.T) {
	tests := []struct {
		name     string
		days     int
		wantTier ExpiryTier
	}{
		{"long expired", -400, TierExpired},
		{"expired yesterday", -1, TierExpired},
		{"expires today is critical", 0, TierCritical},
		{"7 days is critical (boundary)", 7, TierCritical},
		{"8 days is warning (boundary)", 8, TierWarning},
		{"30 days is warning (boundary)", 30, TierWarning},
		{"31 days is healthy", 31, TierHealthy},
		{"400 days is healthy", 400, TierHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTier, ClassifyExpiry(tt.days))
		})
	}
}

func TestExpiryTierString(t *testing.T) {
	assert.Equal(t, "expired", TierExpired.String())
	assert.Equal(t, "critical", TierCritical.String())
	assert.Equal(t, "warning", TierWarning.String())
	assert.Equal(t, "healthy", TierHealthy.String())
	assert.Equal(t, "unknown", ExpiryTier(99).String())
}

func TestSummarize(t *testing.T) {
	rows := []model.Row{
		{DaysToExpiry: -3},
		{DaysToExpiry: 0},
		{DaysToExpiry: 5},
		{DaysToExpiry: 20},
		{DaysToExpiry: 90},
	}

	got := Summarize(rows)
	assert.Equal(t, Summary{Total: 5, Expired: 1, Critical: 2, Warning: 1, Healthy: 1}, got)
	assert.Equal(t, Summary{}, Summarize(nil))
}
