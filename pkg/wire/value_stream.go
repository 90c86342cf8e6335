package wire

import (
	"fmt"
	"math"
	"time"

	"github.com/arkdb/shardwrite/pkg/types"
)

// writeValue streams one insertValues entry according to the
// declared type of its corresponding insertColumns[i] (spec.md §4.6:
// "insertValues... streamed via per-column streamers derived from
// insertColumns").
func (w *writer) writeValue(kind types.DataType, v types.Comparable) error {
	switch kind {
	case types.TypeInt:
		iv, ok := v.(types.IntValue)
		if !ok {
			return fmt.Errorf("expected IntValue for column type INT, got %T", v)
		}
		w.fixedInt64(int64(iv))
	case types.TypeVarchar:
		sv, ok := v.(types.VarcharValue)
		if !ok {
			return fmt.Errorf("expected VarcharValue for column type VARCHAR, got %T", v)
		}
		w.str(string(sv))
	case types.TypeBoolean:
		bv, ok := v.(types.BoolValue)
		if !ok {
			return fmt.Errorf("expected BoolValue for column type BOOLEAN, got %T", v)
		}
		w.bool(bool(bv))
	case types.TypeFloat:
		fv, ok := v.(types.FloatValue)
		if !ok {
			return fmt.Errorf("expected FloatValue for column type FLOAT, got %T", v)
		}
		w.fixedInt64(int64(math.Float64bits(float64(fv))))
	case types.TypeDate:
		dv, ok := v.(types.DateValue)
		if !ok {
			return fmt.Errorf("expected DateValue for column type DATE, got %T", v)
		}
		w.fixedInt64(time.Time(dv).UnixNano())
	default:
		return fmt.Errorf("unsupported column type %v for wire streaming", kind)
	}
	return nil
}

func (r *reader) readValue(kind types.DataType) (types.Comparable, error) {
	switch kind {
	case types.TypeInt:
		v, err := r.fixedInt64()
		if err != nil {
			return nil, err
		}
		return types.IntValue(v), nil
	case types.TypeVarchar:
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		return types.VarcharValue(s), nil
	case types.TypeBoolean:
		b, err := r.bool()
		if err != nil {
			return nil, err
		}
		return types.BoolValue(b), nil
	case types.TypeFloat:
		bits, err := r.fixedInt64()
		if err != nil {
			return nil, err
		}
		return types.FloatValue(math.Float64frombits(uint64(bits))), nil
	case types.TypeDate:
		nanos, err := r.fixedInt64()
		if err != nil {
			return nil, err
		}
		return types.DateValue(time.Unix(0, nanos).UTC()), nil
	default:
		return nil, fmt.Errorf("unsupported column type %v for wire streaming", kind)
	}
}
