package sourcegen

import (
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	sgerrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/mapping"
	"github.com/arkdb/shardwrite/pkg/types"
)

// checkConstraints enforces spec.md §4.3's InsertSourceGen contract
// against row: NOT NULL (including implicit NOT NULL on PRIMARY KEY
// and routing columns), column defaults (SPEC_FULL.md §4.3
// supplement: defaults are filled before NOT NULL is checked), CHECK
// constraints, and — under ValidationValueMatch — that any
// caller-supplied generated-column value equals the value the
// generator computes. Returns the row with defaults/generated values
// filled in.
func (t *Table) checkConstraints(row bson.D, mode ValidationMode) (bson.D, error) {
	row = t.applyDefaults(row)

	row, err := t.applyGenerated(row, mode)
	if err != nil {
		return nil, err
	}

	if err := t.checkNotNull(row); err != nil {
		return nil, err
	}

	if err := t.checkChecks(row); err != nil {
		return nil, err
	}

	return row, nil
}

func (t *Table) applyDefaults(row bson.D) bson.D {
	for _, name := range t.Mapping.MatchPattern("*") {
		ft, ok := t.Mapping.FieldType(name)
		if !ok || !ft.HasDefault {
			continue
		}
		if _, present := lookupBson(row, name); present {
			continue
		}
		row = setBson(row, name, ft.DefaultExpr)
	}
	return row
}

func (t *Table) applyGenerated(row bson.D, mode ValidationMode) (bson.D, error) {
	for _, name := range fieldNames(t.Mapping) {
		ft, ok := t.Mapping.FieldType(name)
		if !ok || !ft.Generated {
			continue
		}

		computed := evaluateGeneratedExpr(ft.GeneratedExpr, row)
		supplied, present := lookupBson(row, name)

		if present && mode == ValidationValueMatch {
			suppliedVal, err := valueFromBson(supplied)
			if err != nil {
				return nil, err
			}
			computedVal, err := valueFromBson(computed)
			if err != nil {
				return nil, err
			}
			if !types.Equal(suppliedVal, computedVal) {
				return nil, &sgerrors.ConstraintViolationError{
					Column:  name,
					Message: "supplied generated-column value does not match the computed value",
				}
			}
		}

		row = setBson(row, name, computed)
	}
	return row, nil
}

// evaluateGeneratedExpr is intentionally trivial: spec.md treats
// generated-column expressions as opaque strings ("generated-
// expression marker"), so a literal-expression generator stands in
// for the full expression evaluator a real query engine would carry.
func evaluateGeneratedExpr(expr string, _ bson.D) interface{} {
	return expr
}

func (t *Table) checkNotNull(row bson.D) error {
	for _, name := range fieldNames(t.Mapping) {
		ft, ok := t.Mapping.FieldType(name)
		if !ok {
			continue
		}
		required := ft.Required || t.isImplicitNotNull(name)
		if !required {
			continue
		}
		v, present := lookupBson(row, name)
		if !present || v == nil {
			return &sgerrors.ConstraintViolationError{Column: name, Message: "value required but missing"}
		}
	}
	return nil
}

func (t *Table) checkChecks(row bson.D) error {
	for _, c := range t.CheckConstraints {
		result, err := c.Expr.Evaluate(row)
		if err != nil {
			return err
		}
		ok, isBool := result.(bool)
		if !isBool || !ok {
			return &sgerrors.ConstraintViolationError{Column: c.Name, Message: "CHECK constraint violated"}
		}
	}
	return nil
}

// fieldNames returns the mapping's installed user field names in a
// deterministic order, excluding metadata fields.
func fieldNames(m *mapping.DocumentMapping) []string {
	names := m.MatchPattern("*")
	out := names[:0]
	for _, n := range names {
		if mapping.IsMetadataField(n) {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
