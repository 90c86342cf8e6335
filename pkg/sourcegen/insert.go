package sourcegen

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// InsertSourceGen produces the canonical document bytes for an insert
// (spec.md §4.3).
type InsertSourceGen struct {
	Table      *Table
	Columns    []string
	Validation ValidationMode
}

// Generate builds the canonical document from an ordered list of
// values aligned with gen.Columns, running checkConstraints before
// emitting the final JSON-shaped payload.
func (gen *InsertSourceGen) Generate(values []interface{}) ([]byte, error) {
	row := make(bson.D, 0, len(gen.Columns))
	for i, col := range gen.Columns {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		row = append(row, bson.E{Key: col, Value: v})
	}

	row, err := gen.Table.checkConstraints(row, gen.Validation)
	if err != nil {
		return nil, err
	}

	return canonicalJSON(row)
}
