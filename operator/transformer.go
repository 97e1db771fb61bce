package operator

import (
	"context"

	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// FailurePolicy decides what a transformer does when its function fails
// for one element.
type FailurePolicy int

const (
	// PassThrough logs the failure and forwards the input unchanged.
	PassThrough FailurePolicy = iota
	// Drop logs the failure and discards the input.
	Drop
	// Fail ends the stream with the error.
	Fail
)

func (p FailurePolicy) String() string {
	switch p {
	case Drop:
		return "drop"
	case Fail:
		return "fail"
	default:
		return "pass-through"
	}
}

// Func maps one element to zero or more elements.
type Func func(ctx context.Context, r *retrievable.Retrievable) ([]*retrievable.Retrievable, error)

// OneToOne lifts a per-element function that returns a single element.
func OneToOne(fn func(ctx context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error)) Func {
	return func(ctx context.Context, r *retrievable.Retrievable) ([]*retrievable.Retrievable, error) {
		out, err := fn(ctx, r)
		if err != nil || out == nil {
			return nil, err
		}
		return []*retrievable.Retrievable{out}, nil
	}
}

// TransformerOption configures a transformer.
type TransformerOption func(*Transformer)

// WithFailurePolicy sets the per-element failure policy.
func WithFailurePolicy(p FailurePolicy) TransformerOption {
	return func(t *Transformer) { t.policy = p }
}

// WithLogger sets the logger used for per-element failures.
func WithLogger(l *logger.Logger) TransformerOption {
	return func(t *Transformer) { t.log = l }
}

// Transformer applies a Func to every element of its input. Extractors,
// exporters, decoders and aggregators are all transformers.
type Transformer struct {
	name   string
	kind   Kind
	input  Operator
	fn     Func
	policy FailurePolicy
	log    *logger.Logger
}

// NewTransformer creates a unary operator applying fn to each element.
func NewTransformer(name string, kind Kind, input Operator, fn Func, opts ...TransformerOption) *Transformer {
	t := &Transformer{
		name:  name,
		kind:  kind,
		input: input,
		fn:    fn,
		log:   logger.Get("operator"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transformer) Name() string                 { return t.name }
func (t *Transformer) Kind() Kind                   { return t.kind }
func (t *Transformer) Input() Operator              { return t.input }
func (t *Transformer) FailurePolicy() FailurePolicy { return t.policy }

func (t *Transformer) Stream(ctx context.Context) Stream {
	p := pipeline.FlatMap(From(t.input), t.apply)
	return Seal(p.Iter(ctx))
}

func (t *Transformer) apply(ctx context.Context, r *retrievable.Retrievable) (pipeline.Iterator[*retrievable.Retrievable], error) {
	if retrievable.IsTerminal(r) {
		return pipeline.Just(r).Iter(ctx), nil
	}
	out, err := t.fn(ctx, r)
	if err == nil {
		return pipeline.FromSlice(out).Iter(ctx), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fields := logger.Fields(
		logger.FieldOperator, t.name,
		logger.FieldRetrievableID, r.ID().String(),
	)
	switch t.policy {
	case Fail:
		return nil, &Error{Operator: t.name, Err: err}
	case Drop:
		t.log.WithError(err).Warn("dropping element after failure", fields)
		_ = r.Release()
		return pipeline.Just[*retrievable.Retrievable]().Iter(ctx), nil
	default:
		t.log.WithError(err).Warn("forwarding element unchanged after failure", fields)
		return pipeline.Just(r).Iter(ctx), nil
	}
}
