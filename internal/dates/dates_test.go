package dates

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDottedTwoDigitYear(t *testing.T) {
	got, ok := Parse("05.03.24")
	if !ok {
		t.Fatal("expected 05.03.24 to parse")
	}
	if !got.Equal(date(2024, time.March, 5)) {
		t.Fatalf("05.03.24 = %v, want 2024-03-05", got)
	}
}

func TestParseDottedFourDigitYear(t *testing.T) {
	got, ok := Parse("31.12.2023")
	if !ok || !got.Equal(date(2023, time.December, 31)) {
		t.Fatalf("31.12.2023 = %v ok=%v", got, ok)
	}
}

func TestParseISOTimestampUsesPrefix(t *testing.T) {
	got, ok := Parse("2024-03-05T10:00:00Z")
	if !ok || !got.Equal(date(2024, time.March, 5)) {
		t.Fatalf("ISO timestamp = %v ok=%v, want 2024-03-05", got, ok)
	}
}

func TestParseSlashMonthFirst(t *testing.T) {
	got, ok := Parse("02/13/2024")
	if !ok {
		t.Fatal("expected 02/13/2024 to parse")
	}
	if !got.Equal(date(2024, time.February, 13)) {
		t.Fatalf("02/13/2024 = %v, want 2024-02-13", got)
	}
}

func TestParseSlashDayFirstFallback(t *testing.T) {
	got, ok := Parse("13/02/2024")
	if !ok {
		t.Fatal("expected 13/02/2024 to parse")
	}
	// 13 cannot be a month, so the day-first reading applies.
	if !got.Equal(date(2024, time.February, 13)) {
		t.Fatalf("13/02/2024 = %v, want 2024-02-13", got)
	}
}

func TestParseSlashAmbiguousPrefersMonthFirst(t *testing.T) {
	got, ok := Parse("03/04/2024")
	if !ok || !got.Equal(date(2024, time.March, 4)) {
		t.Fatalf("03/04/2024 = %v ok=%v, want month-first 2024-03-04", got, ok)
	}
}

func TestParseFallbackRejectsOutOfRangeYears(t *testing.T) {
	if _, ok := Parse("2 January 1987"); ok {
		t.Fatal("expected pre-2000 fallback date to be rejected")
	}
	if got, ok := Parse("2 January 2024"); !ok || !got.Equal(date(2024, time.January, 2)) {
		t.Fatalf("2 January 2024 = %v ok=%v", got, ok)
	}
}

func TestParseGarbage(t *testing.T) {
	for _, raw := range []string{"", "n/a", "soon", "32.13.2024", "99/99/2024"} {
		if _, ok := Parse(raw); ok {
			t.Fatalf("expected %q not to parse", raw)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	got, ok := Canonicalize("05.03.24")
	if !ok || got != "2024-03-05" {
		t.Fatalf("Canonicalize(05.03.24) = %q ok=%v", got, ok)
	}

	got, ok = Canonicalize("next week")
	if ok || got != "next week" {
		t.Fatalf("unparseable input must be returned untouched, got %q ok=%v", got, ok)
	}
}

func TestLooksLikeDate(t *testing.T) {
	positives := []string{"05.03.24", "2024-03-05", "13/02/2024"}
	for _, s := range positives {
		if !LooksLikeDate(s) {
			t.Fatalf("expected %q to look like a date", s)
		}
	}

	negatives := []string{"Jane Doe", "hello", "12", "+4479460958"}
	for _, s := range negatives {
		if LooksLikeDate(s) {
			t.Fatalf("expected %q not to look like a date", s)
		}
	}
}
