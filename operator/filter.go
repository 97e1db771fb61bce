package operator

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Filter forwards the elements its predicate accepts. Rejected elements
// are released. Terminal always passes.
type Filter struct {
	name  string
	input Operator
	// newPred builds the predicate for one stream, so stateful filters
	// start fresh on every pass.
	newPred func() func(*retrievable.Retrievable) bool
}

// NewFilter creates a stateless filter.
func NewFilter(name string, input Operator, pred func(*retrievable.Retrievable) bool) *Filter {
	return &Filter{
		name:    name,
		input:   input,
		newPred: func() func(*retrievable.Retrievable) bool { return pred },
	}
}

// NewTypeFilter keeps elements whose type tag equals typ.
func NewTypeFilter(name string, input Operator, typ string) *Filter {
	return NewFilter(name, input, func(r *retrievable.Retrievable) bool {
		return r.Type == typ
	})
}

// NewDistinct lets each retrievable id through once per stream.
func NewDistinct(name string, input Operator) *Filter {
	return &Filter{
		name:  name,
		input: input,
		newPred: func() func(*retrievable.Retrievable) bool {
			seen := make(map[uuid.UUID]struct{})
			return func(r *retrievable.Retrievable) bool {
				if _, dup := seen[r.ID()]; dup {
					return false
				}
				seen[r.ID()] = struct{}{}
				return true
			}
		},
	}
}

func (f *Filter) Name() string    { return f.name }
func (f *Filter) Kind() Kind      { return KindTransform }
func (f *Filter) Input() Operator { return f.input }

func (f *Filter) Stream(ctx context.Context) Stream {
	pred := f.newPred()
	p := pipeline.Filter(From(f.input), func(r *retrievable.Retrievable) bool {
		if retrievable.IsTerminal(r) || pred(r) {
			return true
		}
		_ = r.Release()
		return false
	})
	return Seal(p.Iter(ctx))
}
