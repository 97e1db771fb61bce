// Package aggregate reduces groups of content or descriptors on a
// retrievable to a single representative.
//
// Content is grouped by content type and descriptors by field name. Each
// group is reduced with one Method and the result takes the position of
// the group's first member.
package aggregate

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

// Method is a reduction strategy.
type Method string

const (
	First  Method = "FIRST"
	Last   Method = "LAST"
	Middle Method = "MIDDLE"
	Mean   Method = "MEAN"
)

var (
	// ErrUnknownMethod is returned for an unrecognised method name.
	ErrUnknownMethod = stderrors.New("aggregate: unknown method")
	// ErrMeanOnContent is returned when MEAN is requested for content.
	ErrMeanOnContent = stderrors.New("aggregate: MEAN is not defined for content")
	// ErrDimensionMismatch is returned when vectors of different length are averaged.
	ErrDimensionMismatch = stderrors.New("aggregate: vector dimensions differ")
)

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case First, Last, Middle, Mean:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Pick selects one member of a non-empty group for FIRST, LAST and MIDDLE.
// MIDDLE is the element at index len/2.
func Pick[T any](group []T, m Method) T {
	switch m {
	case Last:
		return group[len(group)-1]
	case Middle:
		return group[len(group)/2]
	default:
		return group[0]
	}
}

// partition groups items by key, keeping groups in order of first appearance.
func partition[T any, K comparable](items []T, key func(T) K) ([]K, map[K][]T) {
	var order []K
	groups := make(map[K][]T)
	for _, it := range items {
		k := key(it)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}
	return order, groups
}

// ReduceContent reduces each content type group to one element. Elements
// that are not kept are released.
func ReduceContent(items []content.Content, m Method) ([]content.Content, error) {
	if m == Mean {
		return nil, ErrMeanOnContent
	}
	order, groups := partition(items, content.Content.Type)
	out := make([]content.Content, 0, len(order))
	for _, k := range order {
		group := groups[k]
		kept := Pick(group, m)
		for _, c := range group {
			if c != kept {
				_ = content.Release(c)
			}
		}
		out = append(out, kept)
	}
	return out, nil
}

// NewContentAggregator creates an operator that reduces the content of
// every element.
func NewContentAggregator(name string, input operator.Operator, m Method, opts ...operator.TransformerOption) (*operator.Transformer, error) {
	if m == Mean {
		return nil, errors.Configuration(fmt.Sprintf("content aggregator %s cannot use MEAN", name)).WithCause(ErrMeanOnContent)
	}
	fn := operator.OneToOne(func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		reduced, err := ReduceContent(r.Content, m)
		if err != nil {
			return nil, err
		}
		r.Content = reduced
		return r, nil
	})
	return operator.NewTransformer(name, operator.KindAggregate, input, fn, opts...), nil
}

// NewDescriptorAggregator creates an operator that reduces the
// descriptors of every element.
func NewDescriptorAggregator(name string, input operator.Operator, m Method, opts ...operator.TransformerOption) *operator.Transformer {
	fn := operator.OneToOne(func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		reduced, err := ReduceDescriptors(r, m)
		if err != nil {
			return nil, err
		}
		r.Descriptors = reduced
		return r, nil
	})
	return operator.NewTransformer(name, operator.KindAggregate, input, fn, opts...)
}
