package operator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/observability"
	"github.com/kbukum/mediaflow/retrievable"
)

// Instrumented is implemented by operators wrapped with Instrument.
type Instrumented interface {
	Operator
	Unwrap() Operator
}

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumentation)

// WithMetrics records per-element counts and durations on m.
func WithMetrics(m *observability.Metrics) InstrumentOption {
	return func(in *instrumentation) { in.metrics = m }
}

// WithInstrumentLogger sets the logger for stream-fatal errors.
func WithInstrumentLogger(l *logger.Logger) InstrumentOption {
	return func(in *instrumentation) { in.log = l }
}

type instrumentation struct {
	metrics *observability.Metrics
	log     *logger.Logger
}

// Instrument wraps op so that each stream runs in a span, every element is
// counted and timed, and stream-fatal errors are logged once and
// attributed to the operator that raised them. The wrapper keeps op's role.
func Instrument(op Operator, opts ...InstrumentOption) Operator {
	if _, ok := op.(Instrumented); ok {
		return op
	}
	in := instrumentation{log: logger.Get("operator")}
	for _, opt := range opts {
		opt(&in)
	}
	base := instrumented{op: op, in: in}
	switch o := op.(type) {
	case Source:
		return &instrumentedSource{base}
	case Unary:
		return &instrumentedUnary{instrumented: base, unary: o}
	case NAry:
		return &instrumentedNAry{instrumented: base, nary: o}
	default:
		return &base
	}
}

type instrumented struct {
	op Operator
	in instrumentation
}

func (i *instrumented) Name() string     { return i.op.Name() }
func (i *instrumented) Kind() Kind       { return i.op.Kind() }
func (i *instrumented) Unwrap() Operator { return i.op }

func (i *instrumented) Stream(ctx context.Context) Stream {
	ctx, span := observability.StartSpan(ctx, observability.SpanOperator,
		trace.WithAttributes(
			attribute.String(observability.AttrOperator, i.op.Name()),
			attribute.String(observability.AttrOperatorKind, string(i.op.Kind())),
		),
	)
	return &instrumentedStream{
		op:     i.op,
		in:     i.in,
		source: i.op.Stream(ctx),
		span:   span,
	}
}

type instrumentedSource struct{ instrumented }

func (*instrumentedSource) isSource() {}

type instrumentedUnary struct {
	instrumented
	unary Unary
}

func (i *instrumentedUnary) Input() Operator { return i.unary.Input() }

type instrumentedNAry struct {
	instrumented
	nary NAry
}

func (i *instrumentedNAry) Inputs() []Operator { return i.nary.Inputs() }

type instrumentedStream struct {
	op     Operator
	in     instrumentation
	source Stream
	span   trace.Span
	count  int64
	ended  bool
}

func (s *instrumentedStream) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	start := time.Now()
	r, ok, err := s.source.Next(ctx)
	elapsed := time.Since(start)

	if err != nil {
		err = s.attribute(ctx, err, elapsed)
		return nil, false, err
	}
	if ok && !retrievable.IsTerminal(r) {
		s.count++
		if s.in.metrics != nil {
			s.in.metrics.RecordElement(ctx, s.op.Name(), string(s.op.Kind()), observability.OutcomeOK, elapsed)
		}
	}
	return r, ok, nil
}

// attribute logs and records an error the first time it surfaces and
// tags it with the operator name. Errors raised upstream pass unchanged.
func (s *instrumentedStream) attribute(ctx context.Context, err error, elapsed time.Duration) error {
	var opErr *Error
	if errors.As(err, &opErr) && opErr.Operator != s.op.Name() {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if s.ended {
		return err
	}
	s.ended = true

	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	if s.in.metrics != nil {
		s.in.metrics.RecordElement(ctx, s.op.Name(), string(s.op.Kind()), observability.OutcomeFailed, elapsed)
		s.in.metrics.RecordError(ctx, "stream", s.op.Name())
	}
	s.in.log.WithError(err).Error("operator failed", logger.Fields(
		logger.FieldOperator, s.op.Name(),
		logger.FieldCount, s.count,
	))
	if opErr == nil {
		err = &Error{Operator: s.op.Name(), Err: err}
	}
	return err
}

func (s *instrumentedStream) Close() error {
	s.span.SetAttributes(attribute.Int64(observability.AttrElementCount, s.count))
	s.span.End()
	return s.source.Close()
}
