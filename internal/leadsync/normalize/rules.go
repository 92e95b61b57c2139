package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role classifies what a spreadsheet column holds, based on its header label.
type Role string

const (
	RoleEmail    Role = "email"
	RoleDate     Role = "date"
	RoleName     Role = "name"
	RoleCompany  Role = "company"
	RolePhone    Role = "phone"
	RoleTeam     Role = "team"
	RolePlatform Role = "platform"
)

// Rules maps header labels to field roles. Matching is case-insensitive
// substring containment, which is as precise as customer spreadsheets allow.
// Company matching wins over name matching so "Company Name" is not read as
// a person-name column.
type Rules struct {
	synonyms map[Role][]string

	// datePriority orders the date-field groups checked by the aggregator:
	// plain Date columns first, then Created-At style, then meeting dates.
	datePriority [][]string
}

// defaultSynonyms are the header vocabularies observed across customer sheets.
func defaultSynonyms() map[Role][]string {
	return map[Role][]string{
		RoleEmail:    {"email", "e-mail"},
		RoleDate:     {"date", "created", "meeting"},
		RoleName:     {"name", "contact", "person"},
		RoleCompany:  {"company", "organisation", "organization", "account", "business"},
		RolePhone:    {"phone", "mobile", "tel"},
		RoleTeam:     {"team", "owner", "assigned", "rep"},
		RolePlatform: {"platform", "source", "channel"},
	}
}

func defaultDatePriority() [][]string {
	return [][]string{
		{"date"},
		{"created"},
		{"first meeting", "meeting"},
	}
}

// DefaultRules returns the built-in field role vocabulary.
func DefaultRules() *Rules {
	return &Rules{
		synonyms:     defaultSynonyms(),
		datePriority: defaultDatePriority(),
	}
}

// rulesFile is the YAML shape for vocabulary overrides.
type rulesFile struct {
	Email        []string   `yaml:"email"`
	Date         []string   `yaml:"date"`
	Name         []string   `yaml:"name"`
	Company      []string   `yaml:"company"`
	Phone        []string   `yaml:"phone"`
	Team         []string   `yaml:"team"`
	Platform     []string   `yaml:"platform"`
	DatePriority [][]string `yaml:"datePriority"`
}

// LoadRules reads a YAML vocabulary override. Lists present in the file
// replace the built-in list for that role; absent lists keep the defaults.
// An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse field rules: %w", err)
	}

	override := func(role Role, list []string) {
		if len(list) > 0 {
			rules.synonyms[role] = lowerAll(list)
		}
	}
	override(RoleEmail, file.Email)
	override(RoleDate, file.Date)
	override(RoleName, file.Name)
	override(RoleCompany, file.Company)
	override(RolePhone, file.Phone)
	override(RoleTeam, file.Team)
	override(RolePlatform, file.Platform)

	if len(file.DatePriority) > 0 {
		priority := make([][]string, 0, len(file.DatePriority))
		for _, group := range file.DatePriority {
			priority = append(priority, lowerAll(group))
		}
		rules.datePriority = priority
	}

	return rules, nil
}

// HasRole reports whether a header label carries the given role.
func (r *Rules) HasRole(header string, role Role) bool {
	label := strings.ToLower(strings.TrimSpace(header))
	if label == "" {
		return false
	}

	// Labels like "Company Name" or "Contact Email" are not person-name
	// columns even though they contain name-role synonyms.
	if role == RoleName && (r.matches(label, RoleCompany) || r.matches(label, RoleEmail) || r.matches(label, RolePhone)) {
		return false
	}
	return r.matches(label, role)
}

func (r *Rules) matches(label string, role Role) bool {
	for _, synonym := range r.synonyms[role] {
		if strings.Contains(label, synonym) {
			return true
		}
	}
	return false
}

// FirstValue returns the first non-empty value among the lead's fields whose
// header carries the role.
func (r *Rules) FirstValue(lead Lead, role Role) string {
	for _, field := range lead.Fields {
		if field.Name == AccountNameKey {
			continue
		}
		if r.HasRole(field.Name, role) && field.Value != "" {
			return field.Value
		}
	}
	return ""
}

// DateValue locates the lead's date following the priority groups, then
// falls back to scanning every field for a loosely date-shaped value.
func (r *Rules) DateValue(lead Lead, looksLikeDate func(string) bool) string {
	for _, group := range r.datePriority {
		for _, field := range lead.Fields {
			if field.Name == AccountNameKey || field.Value == "" {
				continue
			}
			label := strings.ToLower(strings.TrimSpace(field.Name))
			for _, synonym := range group {
				if strings.Contains(label, synonym) {
					return field.Value
				}
			}
		}
	}

	for _, field := range lead.Fields {
		if field.Name == AccountNameKey {
			continue
		}
		if looksLikeDate(field.Value) {
			return field.Value
		}
	}
	return ""
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
