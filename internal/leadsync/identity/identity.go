// Package identity derives the stable lead ID used as the upsert key and
// the dataset fingerprint used for cheap change detection.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"leadsync_backend/internal/leadsync/normalize"

	"github.com/google/uuid"
)

// IDPrefix marks identifiers minted by this engine.
const IDPrefix = "lead_"

const missing = "no-"

// Engine computes identities against one field vocabulary. The vocabulary
// decides which columns count as identifying fields, so the same Rules
// instance must be used for normalization and identity within a batch.
type Engine struct {
	rules *normalize.Rules
}

// New creates an identity engine.
func New(rules *normalize.Rules) *Engine {
	return &Engine{rules: rules}
}

// StableLeadID derives the deterministic identifier for a lead.
//
// The ID is a pure function of the customer and the lead's identifying
// fields (email, phone, name, company, date): re-running the pipeline over
// unchanged source data reproduces identical IDs, which is what makes the
// upsert idempotent without a lookup index. Changing any one identifying
// value changes the ID.
func (e *Engine) StableLeadID(customerID uuid.UUID, lead normalize.Lead) string {
	parts := []string{
		customerID.String(),
		identifying(e.rules.FirstValue(lead, normalize.RoleEmail), "email"),
		identifying(e.rules.FirstValue(lead, normalize.RolePhone), "phone"),
		identifying(e.rules.FirstValue(lead, normalize.RoleName), "name"),
		identifying(e.rules.FirstValue(lead, normalize.RoleCompany), "company"),
		identifying(e.rules.FirstValue(lead, normalize.RoleDate), "date"),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return IDPrefix + hex.EncodeToString(sum[:])[:16]
}

// DatasetFingerprint hashes the whole normalized lead set. Leads are sorted
// by stable ID and the account name is stripped, so the fingerprint depends
// only on lead content. FNV is fine here: the checksum detects change, it
// is not a security boundary.
func (e *Engine) DatasetFingerprint(customerID uuid.UUID, leads []normalize.Lead) string {
	type entry struct {
		id   string
		lead normalize.Lead
	}

	entries := make([]entry, 0, len(leads))
	for _, lead := range leads {
		entries = append(entries, entry{id: e.StableLeadID(customerID, lead), lead: lead})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	h := fnv.New64a()
	for _, en := range entries {
		fmt.Fprintf(h, "%s\x1e", en.id)
		for _, field := range en.lead.Fields {
			if field.Name == normalize.AccountNameKey {
				continue
			}
			fmt.Fprintf(h, "%s\x1f%s\x1f", field.Name, field.Value)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func identifying(value, kind string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return missing + kind
	}
	return v
}
