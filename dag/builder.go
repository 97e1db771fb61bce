package dag

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/observability"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/validation"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithInstrumentation wraps every built operator with logging, tracing and
// the given metrics. Nil metrics only log and trace.
func WithInstrumentation(m *observability.Metrics) BuilderOption {
	return func(b *Builder) {
		b.instrument = true
		b.metrics = m
	}
}

// WithBroadcastBuffer sets the per-subscriber buffer of inserted
// broadcasts.
func WithBroadcastBuffer(n int) BuilderOption {
	return func(b *Builder) { b.buffer = n }
}

// Builder turns pipeline configurations into operator graphs.
type Builder struct {
	registry   *Registry
	services   Services
	instrument bool
	metrics    *observability.Metrics
	buffer     int
	log        *logger.Logger
}

// NewBuilder creates a builder resolving factories in reg.
func NewBuilder(reg *Registry, svc Services, opts ...BuilderOption) *Builder {
	b := &Builder{
		registry: reg,
		services: svc,
		buffer:   operator.DefaultBroadcastBuffer,
		log:      logger.Get("dag"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Pipeline is a built operator graph.
type Pipeline struct {
	Name    string
	Schema  string
	Context *Context
	// Operators holds the operator built for each operation.
	Operators map[string]operator.Operator
	// Order is a topological order of the operations.
	Order []string
	// Outputs are the streams to drain, sorted by name.
	Outputs []Output
}

// Output is one drained stream of a pipeline.
type Output struct {
	Name     string
	Operator operator.Operator
}

// Output returns the drained operator of the named operation.
func (p *Pipeline) Output(name string) (operator.Operator, bool) {
	for _, o := range p.Outputs {
		if o.Name == name {
			return o.Operator, true
		}
	}
	return nil, false
}

// plan is the validated shape of a configuration.
type plan struct {
	defs      map[string]OperatorDefinition
	factories map[string]Factory
	order     []string
	consumers map[string]int
	outputs   []string
}

// Validate checks cfg without instantiating any operator.
func (b *Builder) Validate(cfg *PipelineConfig) error {
	_, err := b.plan(cfg)
	return err
}

// Build validates cfg and instantiates its operators. No factory runs
// when validation fails.
func (b *Builder) Build(ctx context.Context, cfg *PipelineConfig) (p *Pipeline, err error) {
	if cfg == nil {
		return nil, errNilConfig()
	}
	sctx, span := observability.StartSpan(ctx, observability.SpanBuild,
		trace.WithAttributes(attribute.String(observability.AttrPipeline, cfg.Name)))
	defer func() {
		if err != nil {
			observability.SetSpanError(sctx, err)
		}
		span.End()
	}()

	pl, err := b.plan(cfg)
	if err != nil {
		return nil, err
	}
	pctx, err := newContext(cfg, b.services)
	if err != nil {
		return nil, err
	}

	built := make(map[string]operator.Operator, len(pl.order))
	// consumed holds what downstream entries and outputs read: the built
	// operator or a broadcast over it.
	consumed := make(map[string]operator.Operator, len(pl.order))
	for _, name := range pl.order {
		op, err := b.instantiate(name, cfg.Operations[name], pl, consumed, pctx)
		if err != nil {
			return nil, err
		}
		built[name] = op
		if n := pl.consumers[name]; n > 1 {
			consumed[name] = operator.NewBroadcast(op, n, operator.WithBroadcastBuffer(b.buffer))
		} else {
			consumed[name] = op
		}
	}

	outputs := make([]Output, len(pl.outputs))
	for i, name := range pl.outputs {
		outputs[i] = Output{Name: name, Operator: consumed[name]}
	}

	b.log.Debug("pipeline built", logger.Fields(
		logger.FieldPipeline, cfg.Name,
		logger.FieldCount, len(built),
		"outputs", pl.outputs,
	))
	return &Pipeline{
		Name:      cfg.Name,
		Schema:    pctx.Schema,
		Context:   pctx,
		Operators: built,
		Order:     pl.order,
		Outputs:   outputs,
	}, nil
}

func (b *Builder) plan(cfg *PipelineConfig) (*plan, error) {
	if cfg == nil {
		return nil, errNilConfig()
	}
	if fields := validation.Fields(cfg); fields != nil {
		msgs := make([]string, len(fields))
		for i, f := range fields {
			msgs[i] = f.Field + ": " + f.Message
		}
		return nil, configError(ErrInvalidPipeline, "pipeline %q: %s", cfg.Name, strings.Join(msgs, "; ")).
			WithDetail("fields", fields)
	}
	if _, taken := cfg.Operators[EnumeratorKey]; taken && cfg.Enumerator != nil {
		return nil, configError(ErrInvalidPipeline, "operator name %q is reserved for the enumerator", EnumeratorKey).
			WithDetail("operator", EnumeratorKey)
	}

	pl := &plan{
		defs:      cfg.operators(),
		factories: make(map[string]Factory),
		consumers: make(map[string]int),
	}

	names := make([]string, 0, len(cfg.Operations))
	for name := range cfg.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	g := &Graph{Nodes: names}
	for _, name := range names {
		edge := cfg.Operations[name]
		for _, in := range edge.Inputs {
			if _, ok := cfg.Operations[in]; !ok {
				return nil, configError(ErrUnknownInput, "operation %q reads unknown input %q", name, in).
					WithDetail("operation", name)
			}
			g.Edges = append(g.Edges, Edge{From: in, To: name})
			pl.consumers[in]++
		}
		if err := b.checkEdge(name, edge, pl); err != nil {
			return nil, err
		}
	}

	for _, out := range cfg.Output {
		if _, ok := cfg.Operations[out]; !ok {
			return nil, configError(ErrUnknownOutput, "output %q is not an operation", out).WithDetail("output", out)
		}
	}
	drained := make(map[string]bool)
	for _, out := range cfg.Output {
		drained[out] = true
	}
	for _, name := range names {
		if pl.consumers[name] == 0 {
			drained[name] = true
		}
	}
	for name := range drained {
		pl.outputs = append(pl.outputs, name)
		pl.consumers[name]++
	}
	sort.Strings(pl.outputs)

	order, err := TopologicalOrder(g)
	if err != nil {
		return nil, err
	}
	pl.order = order
	return pl, nil
}

// checkEdge resolves the factory of one operation and checks that its role
// fits the number of inputs.
func (b *Builder) checkEdge(name string, edge OperationEdge, pl *plan) error {
	if edge.Operator == "" {
		if len(edge.Inputs) < 2 || (edge.Merge != MergeUnion && edge.Merge != MergeConcat) {
			return configError(ErrUnknownOperator, "operation %q names no operator", name).WithDetail("operation", name)
		}
		return b.checkConflict(name, edge)
	}

	def, ok := pl.defs[edge.Operator]
	if !ok {
		return configError(ErrUnknownOperator, "operation %q uses undefined operator %q", name, edge.Operator).
			WithDetail("operation", name)
	}
	factory, ok := b.registry.Lookup(def.FactoryName())
	if !ok {
		return configError(ErrUnknownOperator, "operation %q: no factory %q", name, def.FactoryName()).
			WithDetail("operation", name).WithDetail("factory", def.FactoryName())
	}
	pl.factories[name] = factory

	kind := factory.Kind()
	switch {
	case kind == operator.KindSource && len(edge.Inputs) > 0:
		return configError(ErrRoleMismatch, "operation %q: source %q takes no inputs", name, def.FactoryName()).
			WithDetail("operation", name)
	case kind != operator.KindSource && len(edge.Inputs) == 0:
		return configError(ErrRoleMismatch, "operation %q: %s %q needs an input", name, kind, def.FactoryName()).
			WithDetail("operation", name)
	case kind != operator.KindMerge && len(edge.Inputs) > 1 && edge.Merge != MergeUnion && edge.Merge != MergeConcat:
		return configError(ErrAmbiguousMerge, "operation %q has %d inputs but no UNION or CONCAT merge", name, len(edge.Inputs)).
			WithDetail("operation", name)
	}
	return b.checkConflict(name, edge)
}

func (b *Builder) checkConflict(name string, edge OperationEdge) error {
	if _, err := operator.ParseConflictPolicy(edge.Conflict); err != nil {
		return configError(ErrInvalidParameter, "operation %q: %v", name, err).WithDetail("operation", name)
	}
	return nil
}

func (b *Builder) instantiate(name string, edge OperationEdge, pl *plan, consumed map[string]operator.Operator, pctx *Context) (operator.Operator, error) {
	inputs := make([]operator.Operator, len(edge.Inputs))
	for i, in := range edge.Inputs {
		inputs[i] = consumed[in]
	}

	factory, hasOperator := pl.factories[name]
	if !hasOperator {
		return b.wrap(b.merge(name, edge, inputs)), nil
	}
	if len(inputs) > 1 && factory.Kind() != operator.KindMerge {
		inputs = []operator.Operator{b.wrap(b.merge(name+"/"+strings.ToLower(string(edge.Merge)), edge, inputs))}
	}

	def := pl.defs[edge.Operator]
	op, err := factory.New(name, inputs, pctx, NewParams(def.Parameters, pctx.Params))
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, configError(ErrInvalidPipeline, "operation %q: %v", name, err).
			WithDetail("operation", name)
	}
	if _, isSource := op.(operator.Source); isSource != (factory.Kind() == operator.KindSource) {
		return nil, configError(ErrRoleMismatch, "operation %q: factory %q built a %s operator", name, def.FactoryName(), op.Kind()).
			WithDetail("operation", name)
	}
	return b.wrap(op), nil
}

func (b *Builder) merge(name string, edge OperationEdge, inputs []operator.Operator) operator.Operator {
	if edge.Merge == MergeConcat {
		return operator.NewConcat(name, inputs)
	}
	policy, _ := operator.ParseConflictPolicy(edge.Conflict)
	return operator.NewCombine(name, inputs, operator.WithConflictPolicy(policy))
}

func (b *Builder) wrap(op operator.Operator) operator.Operator {
	if !b.instrument {
		return op
	}
	return operator.Instrument(op, operator.WithMetrics(b.metrics))
}

func errNilConfig() error {
	return configError(ErrInvalidPipeline, "pipeline configuration is nil")
}
