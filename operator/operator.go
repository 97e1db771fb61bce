package operator

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Stream is a sequence of retrievables ending with retrievable.Terminal.
type Stream = pipeline.Iterator[*retrievable.Retrievable]

// Kind classifies an operator for configuration and telemetry.
type Kind string

const (
	KindSource    Kind = "source"
	KindTransform Kind = "transform"
	KindExtract   Kind = "extract"
	KindExport    Kind = "export"
	KindAggregate Kind = "aggregate"
	KindMerge     Kind = "merge"
	KindBroadcast Kind = "broadcast"
)

// Operator is a node of a pipeline graph.
type Operator interface {
	Name() string
	Kind() Kind
	// Stream starts a new, independent pass over the operator's output.
	Stream(ctx context.Context) Stream
}

// Source is an operator without inputs. Sources are created with NewSource.
type Source interface {
	Operator
	isSource()
}

// Unary consumes exactly one upstream operator.
type Unary interface {
	Operator
	Input() Operator
}

// NAry consumes several upstream operators.
type NAry interface {
	Operator
	Inputs() []Operator
}

// Inputs returns the upstream operators of op.
func Inputs(op Operator) []Operator {
	switch o := op.(type) {
	case Unary:
		return []Operator{o.Input()}
	case NAry:
		return o.Inputs()
	default:
		return nil
	}
}

// Error attributes a stream-fatal error to the operator that raised it.
type Error struct {
	Operator string
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("operator %s: %v", e.Operator, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// safeNext pulls from a stream of op on a goroutine other than the
// consumer's. A panic becomes an *Error naming op.
func safeNext(ctx context.Context, name string, s Stream) (*retrievable.Retrievable, bool, error) {
	r, ok, err := pipeline.SafeNext(ctx, s)
	if perr := (*pipeline.PanicError)(nil); errors.As(err, &perr) {
		err = &Error{Operator: name, Err: perr}
	}
	return r, ok, err
}

// guarded is From for streams that are pulled on their own goroutine.
func guarded(op Operator) *pipeline.Pipeline[*retrievable.Retrievable] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*retrievable.Retrievable] {
		s := op.Stream(ctx)
		return guardedStream{name: op.Name(), Stream: s}
	})
}

type guardedStream struct {
	name string
	Stream
}

func (g guardedStream) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	return safeNext(ctx, g.name, g.Stream)
}

// From adapts an operator to a pipeline so the generic combinators apply.
func From(op Operator) *pipeline.Pipeline[*retrievable.Retrievable] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*retrievable.Retrievable] {
		return op.Stream(ctx)
	})
}

// Seal turns any iterator into a well-formed Stream: it checks for
// cancellation before each pull, appends Terminal when upstream ends
// without one and stops pulling after Terminal.
func Seal(it pipeline.Iterator[*retrievable.Retrievable]) Stream {
	if s, ok := it.(*sealed); ok {
		return s
	}
	return &sealed{source: it}
}

type sealed struct {
	source pipeline.Iterator[*retrievable.Retrievable]
	done   bool
}

func (s *sealed) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	if s.done {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r, ok, err := s.source.Next(ctx)
	if err != nil {
		s.done = true
		return nil, false, err
	}
	if !ok || retrievable.IsTerminal(r) {
		s.done = true
		return retrievable.Terminal, true, nil
	}
	return r, true, nil
}

func (s *sealed) Close() error { return s.source.Close() }

// Collect drains a fresh stream of op and returns the elements before
// Terminal.
func Collect(ctx context.Context, op Operator) ([]*retrievable.Retrievable, error) {
	return pipeline.Collect(ctx, pipeline.Filter(From(op), notTerminal))
}

func notTerminal(r *retrievable.Retrievable) bool { return !retrievable.IsTerminal(r) }
