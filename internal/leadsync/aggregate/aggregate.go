// Package aggregate computes the transient per-customer lead statistics:
// weekly/monthly actuals plus day, ISO-week, month, team and platform
// breakdowns. All bucketing happens in the fixed business timezone so the
// numbers do not depend on where the worker runs.
package aggregate

import (
	"sort"
	"time"

	"leadsync_backend/internal/dates"
	"leadsync_backend/internal/leadsync/normalize"
)

// BusinessTimezone fixes every bucket boundary, independent of host locale.
const BusinessTimezone = "Europe/London"

const unknownLabel = "Unknown"

// DayCount is a totalsByDay entry.
type DayCount struct {
	Day   string `json:"day"` // canonical YYYY-MM-DD
	Count int    `json:"count"`
}

// WeekCount is a totalsByWeek entry keyed by ISO year and week.
type WeekCount struct {
	Year  int `json:"year"`
	Week  int `json:"week"`
	Count int `json:"count"`
}

// MonthCount is a totalsByMonth entry.
type MonthCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// LabelCount is a breakdown entry for team members and platforms.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Result holds one customer's aggregates. It is recomputed every cycle and
// never persisted; only the two scalar actuals land on the customer row.
type Result struct {
	Total         int          `json:"total"`
	Undated       int          `json:"undated"`
	WeeklyActual  int          `json:"weeklyActual"`
	MonthlyActual int          `json:"monthlyActual"`
	TotalsByDay   []DayCount   `json:"totalsByDay"`
	TotalsByWeek  []WeekCount  `json:"totalsByWeek"`
	TotalsByMonth []MonthCount `json:"totalsByMonth"`
	ByTeamMember  []LabelCount `json:"breakdownByTeamMember"`
	ByPlatform    []LabelCount `json:"breakdownByPlatform"`
}

// Engine buckets leads for one field vocabulary.
type Engine struct {
	rules *normalize.Rules
	loc   *time.Location
}

// New creates an aggregation engine. It fails only when the business
// timezone is missing from the host zone database.
func New(rules *normalize.Rules) (*Engine, error) {
	loc, err := time.LoadLocation(BusinessTimezone)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: rules, loc: loc}, nil
}

// Compute aggregates the leads of one customer relative to now.
//
// A lead without a parseable date still counts toward Total (and the label
// breakdowns) but joins no date bucket. The weekly/monthly actuals cover
// the week and month containing now, so they can shift between runs even
// when the raw data has not changed.
func (e *Engine) Compute(leads []normalize.Lead, now time.Time) Result {
	result := Result{Total: len(leads)}

	nowLocal := now.In(e.loc)
	weekStart := startOfWeek(nowLocal)
	weekEnd := weekStart.AddDate(0, 0, 7)
	monthStart := time.Date(nowLocal.Year(), nowLocal.Month(), 1, 0, 0, 0, 0, e.loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	byDay := make(map[string]int)
	byWeek := make(map[[2]int]int)
	byMonth := make(map[[2]int]int)
	byTeam := make(map[string]int)
	byPlatform := make(map[string]int)

	for _, lead := range leads {
		byTeam[labelOrUnknown(e.rules.FirstValue(lead, normalize.RoleTeam))]++
		byPlatform[labelOrUnknown(e.rules.FirstValue(lead, normalize.RolePlatform))]++

		raw := e.rules.DateValue(lead, dates.LooksLikeDate)
		day, ok := dates.Parse(raw)
		if !ok {
			result.Undated++
			continue
		}

		// Rebuild the date at midnight business time so week and month
		// boundaries are evaluated in the business timezone.
		local := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, e.loc)

		byDay[local.Format(dates.Canonical)]++

		isoYear, isoWeek := local.ISOWeek()
		byWeek[[2]int{isoYear, isoWeek}]++
		byMonth[[2]int{local.Year(), int(local.Month())}]++

		if !local.Before(weekStart) && local.Before(weekEnd) {
			result.WeeklyActual++
		}
		if !local.Before(monthStart) && local.Before(monthEnd) {
			result.MonthlyActual++
		}
	}

	result.TotalsByDay = sortDays(byDay)
	result.TotalsByWeek = sortWeeks(byWeek)
	result.TotalsByMonth = sortMonths(byMonth)
	result.ByTeamMember = sortLabels(byTeam)
	result.ByPlatform = sortLabels(byPlatform)

	return result
}

// startOfWeek returns Monday 00:00:00 of t's week in t's location.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}

func labelOrUnknown(label string) string {
	if label == "" {
		return unknownLabel
	}
	return label
}

func sortDays(m map[string]int) []DayCount {
	out := make([]DayCount, 0, len(m))
	for day, count := range m {
		out = append(out, DayCount{Day: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func sortWeeks(m map[[2]int]int) []WeekCount {
	out := make([]WeekCount, 0, len(m))
	for key, count := range m {
		out = append(out, WeekCount{Year: key[0], Week: key[1], Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}

func sortMonths(m map[[2]int]int) []MonthCount {
	out := make([]MonthCount, 0, len(m))
	for key, count := range m {
		out = append(out, MonthCount{Year: key[0], Month: key[1], Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

func sortLabels(m map[string]int) []LabelCount {
	out := make([]LabelCount, 0, len(m))
	for label, count := range m {
		out = append(out, LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
