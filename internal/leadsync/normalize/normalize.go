// Package normalize turns raw spreadsheet rows into candidate leads:
// header detection, field mapping by header label, text/date/phone
// normalization and business-rule row rejection.
package normalize

import (
	"strings"

	"leadsync_backend/internal/dates"
	"leadsync_backend/platform/phone"
)

// RejectReason identifies why a row was discarded.
type RejectReason string

const (
	// RejectEmpty: every cell in the row is blank.
	RejectEmpty RejectReason = "empty_row"
	// RejectExcluded: a value matched the w/c / w/v business exclusion.
	RejectExcluded RejectReason = "excluded_marker"
	// RejectNoIdentity: neither a name-like nor a company-like field has content.
	RejectNoIdentity RejectReason = "no_identity"
	// RejectTooSparse: fewer than two non-empty fields remain.
	RejectTooSparse RejectReason = "too_sparse"
)

// exclusionMarkers reject a whole row when present in any value. These are
// spreadsheet shorthand the sales team uses for rows that must never become
// leads (written-off / withdrawn).
var exclusionMarkers = []string{"w/c", "w/v"}

// headerScanDepth is how many leading rows are considered when looking for
// the header row.
const headerScanDepth = 5

// Result is the outcome of normalizing one sheet for one customer.
type Result struct {
	Leads       []Lead
	Headers     []string
	HeaderIndex int
	DataRows    int
	Rejected    map[RejectReason]int
}

// RejectedTotal sums all rejection counters.
func (r Result) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Normalizer maps raw rows into leads. Construct one per batch; the
// rejection counters are per-run diagnostics, not process-wide state.
type Normalizer struct {
	rules *Rules
}

// New creates a Normalizer with the given field role rules.
func New(rules *Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Rules exposes the vocabulary so downstream stages (identity, aggregation)
// read fields the same way they were written.
func (n *Normalizer) Rules() *Rules {
	return n.rules
}

// Normalize converts parsed CSV rows into candidate leads for one customer.
// accountName is the owning customer's display name, attached to every lead
// under the reserved AccountNameKey.
func (n *Normalizer) Normalize(rows [][]string, accountName string) Result {
	result := Result{
		HeaderIndex: -1,
		Rejected:    make(map[RejectReason]int),
	}

	headerIdx := DetectHeaderRow(rows)
	if headerIdx < 0 {
		return result
	}
	result.HeaderIndex = headerIdx
	result.Headers = rows[headerIdx]

	dataRows := rows[headerIdx+1:]
	result.DataRows = len(dataRows)

	for _, row := range dataRows {
		if allEmpty(row) {
			result.Rejected[RejectEmpty]++
			continue
		}

		lead := n.mapRow(result.Headers, row, accountName)

		if reason, rejected := n.reject(lead); rejected {
			result.Rejected[reason]++
			continue
		}
		result.Leads = append(result.Leads, lead)
	}

	return result
}

// DetectHeaderRow picks the header among the first rows: the row with the
// most non-empty cells wins, earliest on ties. Returns -1 for empty input.
func DetectHeaderRow(rows [][]string) int {
	depth := len(rows)
	if depth > headerScanDepth {
		depth = headerScanDepth
	}

	best, bestCount := -1, -1
	for i := 0; i < depth; i++ {
		count := 0
		for _, cell := range rows[i] {
			if strings.TrimSpace(cell) != "" {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = i, count
		}
	}
	return best
}

// mapRow builds a lead from one data row using the header labels.
// Blank headers are ignored; values beyond the header width are dropped.
func (n *Normalizer) mapRow(headers []string, row []string, accountName string) Lead {
	lead := Lead{}
	lead.Set(AccountNameKey, strings.TrimSpace(accountName))

	for i, header := range headers {
		label := strings.TrimSpace(header)
		if label == "" || i >= len(row) {
			continue
		}

		value := strings.TrimSpace(row[i])
		switch {
		case n.rules.HasRole(label, RoleEmail):
			value = strings.ToLower(value)
		case n.rules.HasRole(label, RoleDate):
			value, _ = dates.Canonicalize(value)
		case n.rules.HasRole(label, RolePhone):
			value = phone.NormalizeE164(value)
		}

		lead.Set(label, value)
	}
	return lead
}

// reject applies the business rejection rules in order.
func (n *Normalizer) reject(lead Lead) (RejectReason, bool) {
	for _, field := range lead.Fields {
		if field.Name == AccountNameKey {
			continue
		}
		lower := strings.ToLower(field.Value)
		for _, marker := range exclusionMarkers {
			if strings.Contains(lower, marker) {
				return RejectExcluded, true
			}
		}
	}

	name := n.rules.FirstValue(lead, RoleName)
	company := n.rules.FirstValue(lead, RoleCompany)
	if name == "" && company == "" {
		return RejectNoIdentity, true
	}

	if lead.nonEmptyCount() < 2 {
		return RejectTooSparse, true
	}

	return "", false
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
