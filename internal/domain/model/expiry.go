package model

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DaysToExpiry returns the whole number of days between now and expiry,
// rounded towards negative infinity. Expiring in 30 days yields 30, having
// expired one hour ago yields -1.
func DaysToExpiry(expiry, now time.Time) int {
	d := expiry.Sub(now)
	days := d / day
	if d%day != 0 && d < 0 {
		days--
	}
	return int(days)
}

// ParseExpiry parses an RFC 3339 timestamp as returned by Graph for
// endDateTime. Invalid input is reported, never coerced.
func ParseExpiry(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidTimestamp, s, err)
	}
	return t, nil
}
