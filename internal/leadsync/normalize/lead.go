package normalize

import "sort"

// AccountNameKey is the reserved field holding the owning customer's
// display name. It is carried on every lead but excluded from identity
// hashing and dataset fingerprints.
const AccountNameKey = "accountName"

// Field is one named value of a lead. Order follows the source sheet's
// column order, which keeps serialization deterministic.
type Field struct {
	Name  string
	Value string
}

// Lead is a normalized candidate lead: an ordered field map.
type Lead struct {
	Fields []Field
}

// Get returns the value for an exact field name.
func (l Lead) Get(name string) (string, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing field or appends a new one.
func (l *Lead) Set(name, value string) {
	for i := range l.Fields {
		if l.Fields[i].Name == name {
			l.Fields[i].Value = value
			return
		}
	}
	l.Fields = append(l.Fields, Field{Name: name, Value: value})
}

// AccountName returns the reserved account name field.
func (l Lead) AccountName() string {
	v, _ := l.Get(AccountNameKey)
	return v
}

// DataMap returns the lead's fields as a plain map for JSON storage.
// Postgres jsonb does not retain key order, so the ordered form stays the
// source of truth for fingerprinting.
func (l Lead) DataMap() map[string]string {
	m := make(map[string]string, len(l.Fields))
	for _, f := range l.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// FromMap rebuilds a lead from stored JSON data. Key order was lost in
// storage, so fields come back sorted by name. Suitable for aggregation,
// which reads fields by role, but not for re-fingerprinting.
func FromMap(data map[string]string) Lead {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	lead := Lead{Fields: make([]Field, 0, len(names))}
	for _, name := range names {
		lead.Fields = append(lead.Fields, Field{Name: name, Value: data[name]})
	}
	return lead
}

// nonEmptyCount counts fields with content, excluding the account name.
func (l Lead) nonEmptyCount() int {
	n := 0
	for _, f := range l.Fields {
		if f.Name != AccountNameKey && f.Value != "" {
			n++
		}
	}
	return n
}
