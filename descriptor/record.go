package descriptor

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/retrievable"
)

// Record is the serialized form of a descriptor, shared by the JSON and
// msgpack backends.
type Record struct {
	ID            string       `json:"id" msgpack:"id"`
	RetrievableID string       `json:"retrievableId" msgpack:"rid"`
	Field         string       `json:"field" msgpack:"field"`
	Value         EncodedValue `json:"value" msgpack:"value"`
}

// EncodedValue is a descriptor value tagged with its kind. Struct values
// keep their members in Fields.
type EncodedValue struct {
	Kind   retrievable.Kind        `json:"kind" msgpack:"kind"`
	Data   any                     `json:"data,omitempty" msgpack:"data,omitempty"`
	Fields map[string]EncodedValue `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

// NewRecord encodes d.
func NewRecord(d *retrievable.Descriptor) Record {
	return Record{
		ID:            d.ID.String(),
		RetrievableID: d.RetrievableID.String(),
		Field:         d.Field,
		Value:         EncodeValue(d.Value),
	}
}

// Descriptor decodes the record.
func (r Record) Descriptor() (*retrievable.Descriptor, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("descriptor: bad id %q: %w", r.ID, err)
	}
	rid, err := uuid.Parse(r.RetrievableID)
	if err != nil {
		return nil, fmt.Errorf("descriptor: bad retrievable id %q: %w", r.RetrievableID, err)
	}
	v, err := DecodeValue(r.Value)
	if err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", r.ID, err)
	}
	return &retrievable.Descriptor{ID: id, RetrievableID: rid, Field: r.Field, Value: v}, nil
}

// EncodeValue converts v to its serializable form.
func EncodeValue(v retrievable.Value) EncodedValue {
	if s, ok := v.(retrievable.Struct); ok {
		fields := make(map[string]EncodedValue, len(s))
		for k, sub := range s {
			fields[k] = EncodeValue(sub)
		}
		return EncodedValue{Kind: retrievable.KindStruct, Fields: fields}
	}
	var data any
	switch x := v.(type) {
	case retrievable.String:
		data = string(x)
	case retrievable.Int:
		data = int32(x)
	case retrievable.Long:
		data = int64(x)
	case retrievable.Float:
		data = float32(x)
	case retrievable.Double:
		data = float64(x)
	case retrievable.Boolean:
		data = bool(x)
	case retrievable.FloatVector:
		data = []float32(x)
	case retrievable.DoubleVector:
		data = []float64(x)
	case retrievable.IntVector:
		data = []int32(x)
	case retrievable.LongVector:
		data = []int64(x)
	case retrievable.BooleanVector:
		data = []bool(x)
	}
	return EncodedValue{Kind: v.Kind(), Data: data}
}

// DecodeValue rebuilds a value. It accepts the generic shapes produced by
// decoding into any: JSON numbers as float64, msgpack integers of any
// width, and arrays as []any.
func DecodeValue(ev EncodedValue) (retrievable.Value, error) {
	switch ev.Kind {
	case retrievable.KindStruct:
		s := make(retrievable.Struct, len(ev.Fields))
		for k, sub := range ev.Fields {
			v, err := DecodeValue(sub)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			s[k] = v
		}
		return s, nil
	case retrievable.KindString:
		s, ok := ev.Data.(string)
		if !ok {
			return nil, kindError(ev)
		}
		return retrievable.String(s), nil
	case retrievable.KindBoolean:
		b, ok := ev.Data.(bool)
		if !ok {
			return nil, kindError(ev)
		}
		return retrievable.Boolean(b), nil
	case retrievable.KindInt:
		n, err := toInt(ev.Data)
		return retrievable.Int(int32(n)), err
	case retrievable.KindLong:
		n, err := toInt(ev.Data)
		return retrievable.Long(n), err
	case retrievable.KindFloat:
		n, err := toFloat(ev.Data)
		return retrievable.Float(float32(n)), err
	case retrievable.KindDouble:
		n, err := toFloat(ev.Data)
		return retrievable.Double(n), err
	case retrievable.KindFloatVector:
		xs, err := decodeVector(ev, toFloat32)
		return retrievable.FloatVector(xs), err
	case retrievable.KindDoubleVector:
		xs, err := decodeVector(ev, toFloat)
		return retrievable.DoubleVector(xs), err
	case retrievable.KindIntVector:
		xs, err := decodeVector(ev, toInt32)
		return retrievable.IntVector(xs), err
	case retrievable.KindLongVector:
		xs, err := decodeVector(ev, toInt)
		return retrievable.LongVector(xs), err
	case retrievable.KindBooleanVector:
		items, err := toSlice(ev.Data)
		if err != nil {
			return nil, err
		}
		out := make(retrievable.BooleanVector, len(items))
		for i, it := range items {
			b, ok := it.(bool)
			if !ok {
				return nil, kindError(ev)
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("descriptor: unknown value kind %q", ev.Kind)
	}
}

func decodeVector[T any](ev EncodedValue, parse func(any) (T, error)) ([]T, error) {
	items, err := toSlice(ev.Data)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, it := range items {
		if out[i], err = parse(it); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func kindError(ev EncodedValue) error {
	return fmt.Errorf("descriptor: %s value has type %T", ev.Kind, ev.Data)
}

func toSlice(x any) ([]any, error) {
	switch v := x.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []float32:
		return anySlice(v), nil
	case []float64:
		return anySlice(v), nil
	case []int32:
		return anySlice(v), nil
	case []int64:
		return anySlice(v), nil
	case []bool:
		return anySlice(v), nil
	default:
		return nil, fmt.Errorf("descriptor: expected array, got %T", x)
	}
}

func anySlice[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func toInt32(x any) (int32, error) {
	n, err := toInt(x)
	return int32(n), err
}

func toFloat32(x any) (float32, error) {
	f, err := toFloat(x)
	return float32(f), err
}

func toInt(x any) (int64, error) {
	switch v := x.(type) {
	case json.Number:
		return v.Int64()
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("descriptor: %d overflows", v)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("descriptor: expected integer, got %T", x)
	}
}

func toFloat(x any) (float64, error) {
	switch v := x.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("descriptor: %d overflows", v)
		}
		return float64(v), nil
	default:
		return 0, fmt.Errorf("descriptor: expected number, got %T", x)
	}
}
