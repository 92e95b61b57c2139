package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultVariant is the export variant tried when the URL names none, and
// as the fallback after the extracted variant fails.
const DefaultVariant = "0"

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
var variantPattern = regexp.MustCompile(`[#?&]gid=([0-9]+)`)

// Candidate is one export endpoint to try.
type Candidate struct {
	Variant string
	URL     string
}

// ResolveCandidates turns a customer's spreadsheet URL into the ordered
// list of export endpoints to attempt: the variant named in the URL first,
// then the default variant. A URL that does not look like a hosted
// spreadsheet is fetched as-is, as a single candidate.
func ResolveCandidates(sheetURL string) ([]Candidate, error) {
	trimmed := strings.TrimSpace(sheetURL)
	if trimmed == "" {
		return nil, fmt.Errorf("empty sheet url")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sheet url: %w", err)
	}

	match := sheetIDPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return []Candidate{{Variant: "", URL: trimmed}}, nil
	}
	sheetID := match[1]

	variants := []string{DefaultVariant}
	if m := variantPattern.FindStringSubmatch(trimmed); m != nil && m[1] != DefaultVariant {
		variants = []string{m[1], DefaultVariant}
	}

	candidates := make([]Candidate, 0, len(variants))
	for _, variant := range variants {
		candidates = append(candidates, Candidate{
			Variant: variant,
			URL:     exportURL(sheetID, variant),
		})
	}
	return candidates, nil
}

func exportURL(sheetID, variant string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", sheetID, variant)
}
