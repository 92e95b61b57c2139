package aggregate

import (
	"testing"
	"time"

	"leadsync_backend/internal/leadsync/normalize"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(normalize.DefaultRules())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func lead(pairs ...string) normalize.Lead {
	l := normalize.Lead{}
	l.Set(normalize.AccountNameKey, "Acme Ltd")
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Set(pairs[i], pairs[i+1])
	}
	return l
}

// A Wednesday mid-March 2024, business time.
var now = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

func TestComputeWeeklyAndMonthlyActuals(t *testing.T) {
	e := newEngine(t)
	leads := []normalize.Lead{
		lead("Name", "A", "Company", "X", "Date", "2024-03-04"), // Monday of the current week
		lead("Name", "B", "Company", "X", "Date", "2024-03-05"),
		lead("Name", "C", "Company", "X", "Date", "2024-03-01"), // same month, previous week
		lead("Name", "D", "Company", "X", "Date", "2024-02-29"), // previous month
	}

	result := e.Compute(leads, now)
	if result.WeeklyActual != 2 {
		t.Fatalf("WeeklyActual = %d, want 2", result.WeeklyActual)
	}
	if result.MonthlyActual != 3 {
		t.Fatalf("MonthlyActual = %d, want 3", result.MonthlyActual)
	}
	if result.Total != 4 {
		t.Fatalf("Total = %d, want 4", result.Total)
	}
}

func TestComputeWeekBoundary(t *testing.T) {
	e := newEngine(t)
	leads := []normalize.Lead{
		lead("Name", "Mon", "Company", "X", "Date", "2024-03-04"), // Monday 00:00 falls in this week
		lead("Name", "Sun", "Company", "X", "Date", "2024-03-03"), // prior Sunday falls in the previous week
	}

	result := e.Compute(leads, now)
	if result.WeeklyActual != 1 {
		t.Fatalf("WeeklyActual = %d, want only the Monday lead", result.WeeklyActual)
	}

	// Both weeks must appear in the ISO week buckets.
	if len(result.TotalsByWeek) != 2 {
		t.Fatalf("TotalsByWeek = %v, want 2 buckets", result.TotalsByWeek)
	}
	if result.TotalsByWeek[0].Week+1 != result.TotalsByWeek[1].Week {
		t.Fatalf("expected consecutive ISO weeks, got %v", result.TotalsByWeek)
	}
}

func TestComputeUnparseableDateCountsTowardTotalsOnly(t *testing.T) {
	e := newEngine(t)
	leads := []normalize.Lead{
		lead("Name", "A", "Company", "X", "Date", "sometime"),
		lead("Name", "B", "Company", "X", "Date", "2024-03-05"),
	}

	result := e.Compute(leads, now)
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}
	if result.Undated != 1 {
		t.Fatalf("Undated = %d, want 1", result.Undated)
	}
	if len(result.TotalsByDay) != 1 {
		t.Fatalf("TotalsByDay = %v, want a single bucket", result.TotalsByDay)
	}
}

func TestComputeDateFieldPriority(t *testing.T) {
	e := newEngine(t)
	// Both a Date and a Created At column: the plain Date column wins.
	l := lead("Name", "A", "Company", "X", "Created At", "2024-01-01", "Date", "2024-03-05")

	result := e.Compute([]normalize.Lead{l}, now)
	if len(result.TotalsByDay) != 1 || result.TotalsByDay[0].Day != "2024-03-05" {
		t.Fatalf("TotalsByDay = %v, want the Date column value", result.TotalsByDay)
	}
}

func TestComputeLooseDateScanFallback(t *testing.T) {
	e := newEngine(t)
	// No date-role column at all; a date-shaped value hides in Notes.
	l := lead("Name", "A", "Company", "X", "Notes", "05.03.24")

	result := e.Compute([]normalize.Lead{l}, now)
	if len(result.TotalsByDay) != 1 || result.TotalsByDay[0].Day != "2024-03-05" {
		t.Fatalf("TotalsByDay = %v, want loose-scanned date", result.TotalsByDay)
	}
}

func TestComputeBreakdownsSortedDescending(t *testing.T) {
	e := newEngine(t)
	leads := []normalize.Lead{
		lead("Name", "A", "Company", "X", "Team Member", "Alice", "Platform", "LinkedIn"),
		lead("Name", "B", "Company", "X", "Team Member", "Alice", "Platform", "LinkedIn"),
		lead("Name", "C", "Company", "X", "Team Member", "Bob", "Platform", "Referral"),
		lead("Name", "D", "Company", "X"),
	}

	result := e.Compute(leads, now)
	if result.ByTeamMember[0].Label != "Alice" || result.ByTeamMember[0].Count != 2 {
		t.Fatalf("ByTeamMember = %v, want Alice first", result.ByTeamMember)
	}

	foundUnknown := false
	for _, entry := range result.ByTeamMember {
		if entry.Label == "Unknown" && entry.Count == 1 {
			foundUnknown = true
		}
	}
	if !foundUnknown {
		t.Fatalf("ByTeamMember = %v, want an Unknown bucket", result.ByTeamMember)
	}

	if result.ByPlatform[0].Label != "LinkedIn" || result.ByPlatform[0].Count != 2 {
		t.Fatalf("ByPlatform = %v, want LinkedIn first", result.ByPlatform)
	}
}

func TestComputeMonthBuckets(t *testing.T) {
	e := newEngine(t)
	leads := []normalize.Lead{
		lead("Name", "A", "Company", "X", "Date", "2024-02-29"),
		lead("Name", "B", "Company", "X", "Date", "2024-03-01"),
		lead("Name", "C", "Company", "X", "Date", "2024-03-31"),
	}

	result := e.Compute(leads, now)
	if len(result.TotalsByMonth) != 2 {
		t.Fatalf("TotalsByMonth = %v, want 2 buckets", result.TotalsByMonth)
	}
	if result.TotalsByMonth[0].Month != 2 || result.TotalsByMonth[0].Count != 1 {
		t.Fatalf("February bucket = %v", result.TotalsByMonth[0])
	}
	if result.TotalsByMonth[1].Month != 3 || result.TotalsByMonth[1].Count != 2 {
		t.Fatalf("March bucket = %v", result.TotalsByMonth[1])
	}
}
