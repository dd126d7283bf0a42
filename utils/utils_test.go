package utils

import (
	"testing"
	"time"
)

func TestParseRFC3339(t *testing.T) {
	got, ok := ParseRFC3339("2025-11-01T10:00:00Z")
	if !ok {
		t.Fatal("expected valid timestamp")
	}
	want := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// offsets normalize to UTC
	got, ok = ParseRFC3339("2025-11-01T19:00:00+09:00")
	if !ok {
		t.Fatal("expected valid timestamp")
	}
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}

	for _, bad := range []string{"", "tomorrow", "2025-11-01", "2025-11-01 10:00:00"} {
		if _, ok := ParseRFC3339(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(16)
	b := GenerateRandomString(16)
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("expected length 16, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatal("expected distinct random strings")
	}
}
