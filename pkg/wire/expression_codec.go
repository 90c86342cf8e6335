package wire

import (
	"fmt"

	"github.com/arkdb/shardwrite/pkg/sourcegen"
)

// Expression tags. updateAssignments and returnValues both stream
// sourcegen.Expression trees; the tree shapes spec.md §4.3 needs
// (column reference, literal, comparison/boolean) are exactly
// sourcegen's ColumnRef/Literal/BinaryOp.
const (
	exprTagColumnRef uint64 = iota
	exprTagLiteralString
	exprTagLiteralInt
	exprTagBinaryOp
)

func (w *writer) expression(e sourcegen.Expression) error {
	switch v := e.(type) {
	case sourcegen.ColumnRef:
		w.uvarint(exprTagColumnRef)
		w.str(string(v))
	case sourcegen.Literal:
		switch lv := v.Value.(type) {
		case string:
			w.uvarint(exprTagLiteralString)
			w.str(lv)
		case int64:
			w.uvarint(exprTagLiteralInt)
			w.fixedInt64(lv)
		default:
			return fmt.Errorf("unsupported literal value type %T on the wire", v.Value)
		}
	case sourcegen.BinaryOp:
		w.uvarint(exprTagBinaryOp)
		w.str(v.Op)
		if err := w.expression(v.Left); err != nil {
			return err
		}
		if err := w.expression(v.Right); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported expression type %T on the wire", e)
	}
	return nil
}

func (r *reader) expression() (sourcegen.Expression, error) {
	tag, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	switch tag {
	case exprTagColumnRef:
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		return sourcegen.ColumnRef(s), nil
	case exprTagLiteralString:
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		return sourcegen.Literal{Value: s}, nil
	case exprTagLiteralInt:
		n, err := r.fixedInt64()
		if err != nil {
			return nil, err
		}
		return sourcegen.Literal{Value: n}, nil
	case exprTagBinaryOp:
		op, err := r.str()
		if err != nil {
			return nil, err
		}
		left, err := r.expression()
		if err != nil {
			return nil, err
		}
		right, err := r.expression()
		if err != nil {
			return nil, err
		}
		return sourcegen.BinaryOp{Left: left, Right: right, Op: op}, nil
	default:
		return nil, fmt.Errorf("unknown expression tag %d on the wire", tag)
	}
}
