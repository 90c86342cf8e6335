package mapping

import "strings"

// FieldTypeLookup is an immutable name→FieldType map with wildcard
// matching (spec.md §4.2). Every merge produces a new instance via
// copyAndAddAll; existing snapshot handles are never mutated, so a
// reader that captured a lookup before a merge keeps observing the
// mapping as it was at that point (spec.md §5 "readers obtain a
// snapshot reference and are never blocked"). Modeled after the
// teacher's TableMetaData copy-on-write table registry
// (pkg/storage/table.go), generalized from "table name → *Table" to
// "field name → *FieldType".
type FieldTypeLookup struct {
	byName map[string]*FieldType
}

// NewFieldTypeLookup builds an empty lookup.
func NewFieldTypeLookup() *FieldTypeLookup {
	return &FieldTypeLookup{byName: make(map[string]*FieldType)}
}

// FieldType returns the installed type for fullName, if any.
func (l *FieldTypeLookup) FieldType(fullName string) (*FieldType, bool) {
	ft, ok := l.byName[fullName]
	return ft, ok
}

// copyAndAddAll returns a new FieldTypeLookup extending l with the
// given batch of field types, without mutating l.
func (l *FieldTypeLookup) copyAndAddAll(batch []*FieldType) *FieldTypeLookup {
	next := make(map[string]*FieldType, len(l.byName)+len(batch))
	for k, v := range l.byName {
		next[k] = v
	}
	for _, ft := range batch {
		next[ft.FullName] = ft
	}
	return &FieldTypeLookup{byName: next}
}

// MatchPattern resolves a simple glob (the only supported wildcard is
// "*") against every installed field name. A pattern with no wildcard
// is returned verbatim, matched or not (spec.md §4.2).
func (l *FieldTypeLookup) MatchPattern(pattern string) []string {
	if !strings.Contains(pattern, "*") {
		return []string{pattern}
	}

	var matches []string
	for name := range l.byName {
		if globMatch(pattern, name) {
			matches = append(matches, name)
		}
	}
	return matches
}

// globMatch implements the single-wildcard subset of shell globbing
// spec.md §4.2 calls for: "*" may appear any number of times and
// matches any run of characters; everything else matches literally.
func globMatch(pattern, name string) bool {
	segments := strings.Split(pattern, "*")
	if len(segments) == 1 {
		return pattern == name
	}

	rest := name
	for i, seg := range segments {
		switch {
		case i == 0:
			if !strings.HasPrefix(rest, seg) {
				return false
			}
			rest = rest[len(seg):]
		case i == len(segments)-1:
			return strings.HasSuffix(rest, seg)
		case seg == "":
			continue
		default:
			idx := strings.Index(rest, seg)
			if idx < 0 {
				return false
			}
			rest = rest[idx+len(seg):]
		}
	}
	return true
}
