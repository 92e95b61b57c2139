// Package dates parses the mixed date formats found in customer
// spreadsheets. Both the row normalizer and the aggregation engine share
// this grammar so a value buckets the same way it is stored.
package dates

import (
	"strconv"
	"strings"
	"time"
)

// Canonical is the storage format for normalized date values.
const Canonical = "2006-01-02"

// fallbackLayouts are tried last, for values no explicit rule matched.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// Parse interprets a raw spreadsheet value as a calendar date.
//
// The trial order is load-bearing: dotted day-first dates are tried before
// ISO, then slash dates month-first before day-first. Slash values such as
// 03/04/2024 are therefore read month-first; that ambiguity is a property
// of the source data, not something to infer per locale.
func Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if d, ok := parseDotted(s); ok {
		return d, true
	}
	if d, ok := parseISOPrefix(s); ok {
		return d, true
	}
	if d, ok := parseSlash(s); ok {
		return d, true
	}
	return parseFallback(s)
}

// Canonicalize rewrites raw as YYYY-MM-DD when the grammar accepts it.
// Unparseable input is returned unchanged with ok == false.
func Canonicalize(raw string) (string, bool) {
	d, ok := Parse(raw)
	if !ok {
		return raw, false
	}
	return d.Format(Canonical), true
}

// LooksLikeDate reports whether a value is loosely date-shaped: at least
// one digit plus a recognized date separator. It is the cheap pre-filter
// used when scanning arbitrary fields for a date.
func LooksLikeDate(raw string) bool {
	s := strings.TrimSpace(raw)
	if len(s) < 6 || len(s) > 40 {
		return false
	}

	digits := 0
	separator := false
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			digits++
		case ch == '.' || ch == '/' || ch == '-':
			separator = true
		}
	}
	return digits >= 4 && separator
}

// parseDotted handles D.M.YY and D.M.YYYY.
func parseDotted(s string) (time.Time, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, okD := atoi(parts[0])
	month, okM := atoi(parts[1])
	year, okY := atoi(parts[2])
	if !okD || !okM || !okY {
		return time.Time{}, false
	}
	if len(parts[2]) <= 2 {
		year += 2000
	}

	return makeDate(year, month, day)
}

// parseISOPrefix handles YYYY-MM-DD, including timestamp suffixes, by
// reading only the first 10 characters.
func parseISOPrefix(s string) (time.Time, bool) {
	if len(s) < 10 {
		return time.Time{}, false
	}
	d, err := time.Parse(Canonical, s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// parseSlash handles slash-separated dates: month-first, then day-first
// only when the month-first reading is impossible.
func parseSlash(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	first, okF := atoi(parts[0])
	second, okS := atoi(parts[1])
	year, okY := atoi(parts[2])
	if !okF || !okS || !okY || len(parts[2]) != 4 {
		return time.Time{}, false
	}

	// M/D/YYYY
	if d, ok := makeDate(year, first, second); ok {
		return d, true
	}
	// D/M/YYYY
	return makeDate(year, second, first)
}

func parseFallback(s string) (time.Time, bool) {
	for _, layout := range fallbackLayouts {
		d, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if d.Year() < 2000 || d.Year() > 2100 {
			continue
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1000 || year > 9999 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30); reject anything that moved.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) (int, bool) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
