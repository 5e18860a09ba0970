package codec

import (
	"testing"
	"time"
)

func TestParseRFC3339AcceptsBothPrecisions(t *testing.T) {
	for _, s := range []string{
		"2026-01-02T03:04:05Z",
		"2026-01-02T03:04:05.123456789Z",
		"2026-01-02T03:04:05+09:00",
	} {
		if _, err := ParseRFC3339(s); err != nil {
			t.Fatalf("ParseRFC3339(%q): %v", s, err)
		}
	}
}

func TestParseRFC3339RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2026-01-02", "03:04:05Z"} {
		if _, err := ParseRFC3339(s); err == nil {
			t.Fatalf("ParseRFC3339(%q) unexpectedly succeeded", s)
		}
	}
}

func TestFormatRFC3339Canonicalizes(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	in := time.Date(2026, 1, 2, 12, 0, 0, 0, loc)
	got := FormatRFC3339(in)
	if got != "2026-01-02T03:00:00Z" {
		t.Fatalf("FormatRFC3339 = %q", got)
	}
	back, err := ParseRFC3339(got)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !back.Equal(in) {
		t.Fatalf("round trip changed instant: %v vs %v", back, in)
	}
}

func TestFromEpochSeconds(t *testing.T) {
	got := FromEpochSeconds(1767322800)
	want := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("FromEpochSeconds = %v, want %v", got, want)
	}
	frac := FromEpochSeconds(1.5)
	if frac.UnixNano() != int64(1500*time.Millisecond) {
		t.Fatalf("fractional seconds lost: %v", frac.UnixNano())
	}
}
