package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestDaysToExpiry(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"thirty days ahead", fixedNow.Add(30 * 24 * time.Hour), 30},
		{"one day ago", fixedNow.Add(-24 * time.Hour), -1},
		{"exactly now", fixedNow, 0},
		{"23 hours ahead truncates to zero", fixedNow.Add(23 * time.Hour), 0},
		{"one hour ago floors to minus one", fixedNow.Add(-time.Hour), -1},
		{"25 hours ago floors to minus two", fixedNow.Add(-25 * time.Hour), -2},
		{"400 days ahead", fixedNow.Add(400 * 24 * time.Hour), 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.DaysToExpiry(tt.expiry, fixedNow))
		})
	}
}

func TestDaysToExpiry_Deterministic(t *testing.T) {
	expiry := fixedNow.Add(10*24*time.Hour + 3*time.Hour)
	first := model.DaysToExpiry(expiry, fixedNow)
	second := model.DaysToExpiry(expiry, fixedNow)
	assert.Equal(t, first, second)
	assert.Equal(t, 10, first)
}

func TestParseExpiry_Valid(t *testing.T) {
	got, err := model.ParseExpiry("2026-04-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseExpiry_Invalid(t *testing.T) {
	_, err := model.ParseExpiry("next tuesday")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTimestamp)
}
