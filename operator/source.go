package operator

import (
	"context"

	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Enumerator produces the elements of a source, one pass per call. It does
// not emit Terminal; the source appends it.
type Enumerator interface {
	Enumerate(ctx context.Context) (pipeline.Iterator[*retrievable.Retrievable], error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func(ctx context.Context) (pipeline.Iterator[*retrievable.Retrievable], error)

func (f EnumeratorFunc) Enumerate(ctx context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
	return f(ctx)
}

// SliceEnumerator enumerates a fixed list. Each pass yields copies, so a
// source can be streamed more than once.
func SliceEnumerator(items ...*retrievable.Retrievable) Enumerator {
	return EnumeratorFunc(func(context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
		copies := make([]*retrievable.Retrievable, len(items))
		for i, r := range items {
			copies[i] = r.Copy()
		}
		return pipeline.FromSlice(copies).Iter(context.Background()), nil
	})
}

// SourceOption configures a source.
type SourceOption func(*SourceOperator)

// WithPrefetch enumerates up to n elements ahead of the consumer on a
// separate goroutine.
func WithPrefetch(n int) SourceOption {
	return func(s *SourceOperator) { s.prefetch = n }
}

// SourceOperator is the Source built by NewSource.
type SourceOperator struct {
	name     string
	enum     Enumerator
	prefetch int
}

// NewSource creates a source operator over enum.
func NewSource(name string, enum Enumerator, opts ...SourceOption) *SourceOperator {
	s := &SourceOperator{name: name, enum: enum}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SourceOperator) Name() string { return s.name }
func (s *SourceOperator) Kind() Kind   { return KindSource }
func (s *SourceOperator) isSource()    {}

// Stream restarts enumeration. An enumeration error is returned by the
// first Next.
func (s *SourceOperator) Stream(ctx context.Context) Stream {
	var p *pipeline.Pipeline[*retrievable.Retrievable]
	it, err := s.enum.Enumerate(ctx)
	if err != nil {
		p = pipeline.Failed[*retrievable.Retrievable](&Error{Operator: s.name, Err: err})
	} else {
		p = pipeline.From(it)
		if s.prefetch > 0 {
			p = pipeline.Buffer(p, s.prefetch)
		}
	}
	return Seal(p.Iter(ctx))
}
