package retrievable

import (
	"fmt"
	"maps"
	"slices"
)

// Kind names a descriptor value type. It is also the on-disk type tag.
type Kind string

const (
	KindString        Kind = "STRING"
	KindInt           Kind = "INT"
	KindLong          Kind = "LONG"
	KindFloat         Kind = "FLOAT"
	KindDouble        Kind = "DOUBLE"
	KindBoolean       Kind = "BOOLEAN"
	KindFloatVector   Kind = "FLOAT_VECTOR"
	KindDoubleVector  Kind = "DOUBLE_VECTOR"
	KindIntVector     Kind = "INT_VECTOR"
	KindLongVector    Kind = "LONG_VECTOR"
	KindBooleanVector Kind = "BOOLEAN_VECTOR"
	KindStruct        Kind = "STRUCT"
)

// Value is a descriptor payload.
type Value interface {
	Kind() Kind
	Clone() Value
}

// Numeric values can be viewed as a vector of doubles. Scalars are
// vectors of length one.
type Numeric interface {
	Value
	Float64s() []float64
}

type (
	String        string
	Int           int32
	Long          int64
	Float         float32
	Double        float64
	Boolean       bool
	FloatVector   []float32
	DoubleVector  []float64
	IntVector     []int32
	LongVector    []int64
	BooleanVector []bool
	// Struct holds named sub-values.
	Struct map[string]Value
)

func (String) Kind() Kind        { return KindString }
func (Int) Kind() Kind           { return KindInt }
func (Long) Kind() Kind          { return KindLong }
func (Float) Kind() Kind         { return KindFloat }
func (Double) Kind() Kind        { return KindDouble }
func (Boolean) Kind() Kind       { return KindBoolean }
func (FloatVector) Kind() Kind   { return KindFloatVector }
func (DoubleVector) Kind() Kind  { return KindDoubleVector }
func (IntVector) Kind() Kind     { return KindIntVector }
func (LongVector) Kind() Kind    { return KindLongVector }
func (BooleanVector) Kind() Kind { return KindBooleanVector }
func (Struct) Kind() Kind        { return KindStruct }

func (v String) Clone() Value        { return v }
func (v Int) Clone() Value           { return v }
func (v Long) Clone() Value          { return v }
func (v Float) Clone() Value         { return v }
func (v Double) Clone() Value        { return v }
func (v Boolean) Clone() Value       { return v }
func (v FloatVector) Clone() Value   { return slices.Clone(v) }
func (v DoubleVector) Clone() Value  { return slices.Clone(v) }
func (v IntVector) Clone() Value     { return slices.Clone(v) }
func (v LongVector) Clone() Value    { return slices.Clone(v) }
func (v BooleanVector) Clone() Value { return slices.Clone(v) }

func (v Struct) Clone() Value {
	cp := make(Struct, len(v))
	for k, sub := range v {
		if sub != nil {
			sub = sub.Clone()
		}
		cp[k] = sub
	}
	return cp
}

// Keys returns the struct's field names in sorted order.
func (v Struct) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

func (v Int) Float64s() []float64    { return []float64{float64(v)} }
func (v Long) Float64s() []float64   { return []float64{float64(v)} }
func (v Float) Float64s() []float64  { return []float64{float64(v)} }
func (v Double) Float64s() []float64 { return []float64{float64(v)} }

func (v Boolean) Float64s() []float64 {
	if v {
		return []float64{1}
	}
	return []float64{0}
}

func (v FloatVector) Float64s() []float64 { return widen(v) }
func (v IntVector) Float64s() []float64   { return widen(v) }
func (v LongVector) Float64s() []float64  { return widen(v) }

func (v DoubleVector) Float64s() []float64 { return slices.Clone([]float64(v)) }

func (v BooleanVector) Float64s() []float64 {
	out := make([]float64, len(v))
	for i, b := range v {
		if b {
			out[i] = 1
		}
	}
	return out
}

func widen[T int32 | int64 | float32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}
	return out
}

// Dim returns the number of components of a numeric value.
func Dim(v Numeric) int { return len(v.Float64s()) }

// ValueOf converts a decoded JSON/YAML/msgpack scalar or slice into a Value.
// It returns an error for shapes that have no descriptor representation.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Boolean(v), nil
	case int:
		return Long(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Long(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Long(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Double(v), nil
	case []float32:
		return FloatVector(v), nil
	case []float64:
		return DoubleVector(v), nil
	case []int32:
		return IntVector(v), nil
	case []int64:
		return LongVector(v), nil
	case []bool:
		return BooleanVector(v), nil
	case map[string]any:
		s := make(Struct, len(v))
		for k, sub := range v {
			sv, err := ValueOf(sub)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			s[k] = sv
		}
		return s, nil
	default:
		return nil, fmt.Errorf("retrievable: unsupported descriptor value %T", x)
	}
}
