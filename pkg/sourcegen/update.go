package sourcegen

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// UpdateSourceGen produces the canonical document bytes for an
// update: assignments are evaluated against currentDoc, unspecified
// columns retain their current value, generated columns are
// recomputed, and CHECK constraints are evaluated against the
// post-update row (spec.md §4.3).
type UpdateSourceGen struct {
	Table         *Table
	UpdateColumns []string
}

// Generate applies assignments to currentDoc. An assignment whose
// expression evaluates to nil (for example a reference to a column
// absent from currentDoc) takes its column's insertValues entry
// instead, when there is one (the insert-then-update fallback path,
// spec.md §8 scenario 5).
func (gen *UpdateSourceGen) Generate(currentDoc bson.D, assignments []Assignment, insertValues map[string]interface{}) ([]byte, error) {
	row := append(bson.D(nil), currentDoc...)

	for _, a := range assignments {
		v, err := a.Expression.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			if iv, ok := insertValues[a.Column]; ok {
				v = iv
			}
		}
		row = setBson(row, a.Column, v)
	}

	row, err := gen.Table.checkConstraints(row, ValidationNone)
	if err != nil {
		return nil, err
	}

	return canonicalJSON(row)
}
