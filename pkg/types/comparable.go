// Package types holds the value vocabulary shared by the mapping,
// source-generation and upsert packages: field data types, comparable
// field values (used for CHECK constraints and generated-column
// comparisons) and the optimistic-concurrency sentinels.
package types

import (
	"fmt"
	"time"
)

// DataType is the set of field types a mapping can declare.
type DataType int

const (
	TypeInt DataType = iota
	TypeVarchar
	TypeBoolean
	TypeFloat
	TypeDate
	TypeObject
)

func (d DataType) String() string {
	switch d {
	case TypeInt:
		return "INT"
	case TypeVarchar:
		return "VARCHAR"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeFloat:
		return "FLOAT"
	case TypeDate:
		return "DATE"
	case TypeObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// Comparable is implemented by every field value kind so that
// CHECK-constraint and generated-column comparisons can be expressed
// without a type switch at every call site.
type Comparable interface {
	Compare(other Comparable) int
	DataType() DataType
}

// IntValue is a field value of type INT.
type IntValue int64

func (v IntValue) Compare(other Comparable) int {
	o := other.(IntValue)
	switch {
	case v < o:
		return -1
	case v > o:
		return 1
	default:
		return 0
	}
}
func (v IntValue) DataType() DataType { return TypeInt }
func (v IntValue) String() string     { return fmt.Sprintf("%d", int64(v)) }

// VarcharValue is a field value of type VARCHAR.
type VarcharValue string

func (v VarcharValue) Compare(other Comparable) int {
	o := other.(VarcharValue)
	switch {
	case v < o:
		return -1
	case v > o:
		return 1
	default:
		return 0
	}
}
func (v VarcharValue) DataType() DataType { return TypeVarchar }
func (v VarcharValue) String() string     { return string(v) }

// FloatValue is a field value of type FLOAT.
type FloatValue float64

func (v FloatValue) Compare(other Comparable) int {
	o := other.(FloatValue)
	switch {
	case v < o:
		return -1
	case v > o:
		return 1
	default:
		return 0
	}
}
func (v FloatValue) DataType() DataType { return TypeFloat }
func (v FloatValue) String() string     { return fmt.Sprintf("%f", float64(v)) }

// BoolValue is a field value of type BOOLEAN (false orders before true).
type BoolValue bool

func (v BoolValue) Compare(other Comparable) int {
	o := other.(BoolValue)
	if v == o {
		return 0
	}
	if !bool(v) && bool(o) {
		return -1
	}
	return 1
}
func (v BoolValue) DataType() DataType { return TypeBoolean }
func (v BoolValue) String() string     { return fmt.Sprintf("%t", bool(v)) }

// DateValue is a field value of type DATE.
type DateValue time.Time

func (v DateValue) Compare(other Comparable) int {
	o := time.Time(other.(DateValue))
	t := time.Time(v)
	switch {
	case t.Before(o):
		return -1
	case t.After(o):
		return 1
	default:
		return 0
	}
}
func (v DateValue) DataType() DataType { return TypeDate }
func (v DateValue) String() string     { return time.Time(v).Format("2006-01-02T15:04:05Z07:00") }

// Equal reports whether two comparables hold the same value. Used by
// generated-column VALUE_MATCH validation, which must compare a
// caller-supplied value against a computed one.
func Equal(a, b Comparable) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.DataType() != b.DataType() {
		return false
	}
	return a.Compare(b) == 0
}
