package sourcegen

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Expression is the minimal evaluation contract shared by generated-
// column expressions, default expressions, CHECK constraints and
// update assignments (spec.md §4.3). A real query planner's
// expression tree is outside this spec's scope; these cover the
// column-reference / literal / comparison / boolean shapes those
// rules actually need.
type Expression interface {
	Evaluate(row bson.D) (interface{}, error)
}

// ColumnRef resolves to the current value of a named column in row.
type ColumnRef string

func (c ColumnRef) Evaluate(row bson.D) (interface{}, error) {
	v, ok := lookupBson(row, string(c))
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Literal always evaluates to the same value.
type Literal struct {
	Value interface{}
}

func (l Literal) Evaluate(bson.D) (interface{}, error) { return l.Value, nil }

// BinaryOp supports the comparison and boolean operators CHECK
// constraints and generated-column expressions are built from.
type BinaryOp struct {
	Left, Right Expression
	Op          string // "=", "!=", "<", "<=", ">", ">=", "AND", "OR"
}

func (b BinaryOp) Evaluate(row bson.D) (interface{}, error) {
	lv, err := b.Left.Evaluate(row)
	if err != nil {
		return nil, err
	}

	if b.Op == "AND" || b.Op == "OR" {
		lb, ok := lv.(bool)
		if !ok {
			return nil, fmt.Errorf("left operand of %s is not boolean", b.Op)
		}
		if b.Op == "AND" && !lb {
			return false, nil
		}
		if b.Op == "OR" && lb {
			return true, nil
		}
		rv, err := b.Right.Evaluate(row)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("right operand of %s is not boolean", b.Op)
		}
		return rb, nil
	}

	rv, err := b.Right.Evaluate(row)
	if err != nil {
		return nil, err
	}

	lc, err := valueFromBson(lv)
	if err != nil {
		return nil, err
	}
	rc, err := valueFromBson(rv)
	if err != nil {
		return nil, err
	}
	cmp := lc.Compare(rc)

	switch b.Op {
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", b.Op)
	}
}

// Assignment is one `column = expression` pair from updateAssignments
// (spec.md §3 "Item... updateAssignments: [Expression]").
type Assignment struct {
	Column     string
	Expression Expression
}
