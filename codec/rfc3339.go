// Package codec converts between wire representations and domain values.
// Timestamps travel as RFC 3339 text; epoch helpers back the lenient
// decoding path.
package codec

import (
	"math"
	"time"
)

// ParseRFC3339 parses wire text into a time.Time. Nanosecond precision is
// accepted and optional.
func ParseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

// FormatRFC3339 renders the canonical wire form: UTC, RFC3339Nano (Go trims
// trailing zeros).
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FromEpochSeconds converts fractional Unix seconds into a UTC time.Time.
func FromEpochSeconds(sec float64) time.Time {
	s, frac := math.Modf(sec)
	return time.Unix(int64(s), int64(frac*float64(time.Second))).UTC()
}
