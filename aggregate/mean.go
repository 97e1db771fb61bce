package aggregate

import (
	"fmt"

	"github.com/kbukum/mediaflow/retrievable"
)

// ReduceDescriptors reduces each field group of r's descriptors to one.
func ReduceDescriptors(r *retrievable.Retrievable, m Method) ([]*retrievable.Descriptor, error) {
	order, groups := partition(r.Descriptors, func(d *retrievable.Descriptor) string { return d.Field })
	out := make([]*retrievable.Descriptor, 0, len(order))
	for _, field := range order {
		group := groups[field]
		if m != Mean || len(group) == 1 {
			out = append(out, Pick(group, m))
			continue
		}
		v, ok, err := MeanValue(group)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		if !ok {
			// Non-numeric groups have no mean.
			out = append(out, group[0])
			continue
		}
		out = append(out, retrievable.NewDescriptor(r.ID(), field, v))
	}
	return out, nil
}

// MeanValue averages the values of a descriptor group element-wise in
// double precision. A group of float vectors yields a float vector, any
// other vector group a double vector and a group of scalars a double.
// ok is false when some value is not numeric.
func MeanValue(group []*retrievable.Descriptor) (v retrievable.Value, ok bool, err error) {
	var (
		sum       []float64
		allFloat  = true
		allScalar = true
	)
	for i, d := range group {
		num, isNum := d.Value.(retrievable.Numeric)
		if !isNum {
			return nil, false, nil
		}
		switch num.(type) {
		case retrievable.FloatVector:
			allScalar = false
		case retrievable.DoubleVector, retrievable.IntVector, retrievable.LongVector, retrievable.BooleanVector:
			allScalar, allFloat = false, false
		default:
			allFloat = false
		}
		xs := num.Float64s()
		if i == 0 {
			sum = make([]float64, len(xs))
		} else if len(xs) != len(sum) {
			return nil, false, fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(sum), len(xs))
		}
		for j, x := range xs {
			sum[j] += x
		}
	}

	n := float64(len(group))
	for j := range sum {
		sum[j] /= n
	}
	switch {
	case allScalar:
		return retrievable.Double(sum[0]), true, nil
	case allFloat:
		out := make(retrievable.FloatVector, len(sum))
		for j, x := range sum {
			out[j] = float32(x)
		}
		return out, true, nil
	default:
		return retrievable.DoubleVector(sum), true, nil
	}
}
