package sourcegen

import "github.com/arkdb/shardwrite/pkg/mapping"

// CheckConstraint is a named boolean expression evaluated against the
// post-write row (spec.md §4.3: "CHECK constraints are evaluated
// against the post-update row").
type CheckConstraint struct {
	Name string
	Expr Expression
}

// Table is the minimal schema view InsertSourceGen/UpdateSourceGen
// need beyond the per-field FieldType already carried by the
// mapping: primary-key and routing columns (both implicitly NOT
// NULL, spec.md §4.3), and CHECK constraints, which can span more
// than one column and so don't live on a single FieldType.
type Table struct {
	Name             string
	Mapping          *mapping.DocumentMapping
	PrimaryKey       []string
	RoutingColumn    string
	CheckConstraints []CheckConstraint
}

// ValidationMode controls whether InsertSourceGen cross-checks a
// caller-supplied generated-column value (spec.md §4.3).
type ValidationMode int

const (
	ValidationNone ValidationMode = iota
	ValidationValueMatch
)

func (t *Table) isImplicitNotNull(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return column != "" && column == t.RoutingColumn
}
