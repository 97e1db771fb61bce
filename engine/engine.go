// Package engine wires configuration into a ready-to-use pipeline engine:
// descriptor stores, the disk resolver, the content cache, the operator
// registry, the pipeline loader, the graph builder, the job scheduler and
// the hub job events are published on.
package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/mediaflow/config"
	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/observability"
	"github.com/kbukum/mediaflow/resolver"
	"github.com/kbukum/mediaflow/scheduler"
	"github.com/kbukum/mediaflow/sse"
	"github.com/kbukum/mediaflow/stage"
	"github.com/kbukum/mediaflow/version"
)

// Option customizes an Engine.
type Option func(*options)

type options struct {
	loader   dag.Loader
	register []func(*dag.Registry) error
}

// WithLoader replaces the file loader built from the pipeline directories.
func WithLoader(l dag.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithFactories registers additional operator factories next to the
// built-in stages.
func WithFactories(fn func(*dag.Registry) error) Option {
	return func(o *options) { o.register = append(o.register, fn) }
}

// Job event types published on the event hub.
const (
	EventJobStatus   = "status"
	EventJobFinished = "finished"
)

// JobTopic is the subscriber id prefix for events of one job. Subscribers
// register as JobTopic(id) + ":" + a unique suffix.
func JobTopic(id string) string { return "job:" + id }

// Engine runs named pipelines.
type Engine struct {
	cfg       *config.Config
	stores    *descriptor.Provider
	cache     *content.Cache
	registry  *dag.Registry
	loader    dag.Loader
	builder   *dag.Builder
	scheduler *scheduler.Scheduler
	events    *sse.Hub
	shutdown  observability.ShutdownFunc
	log       *logger.Logger
}

// New creates an engine from cfg. Defaults must already be applied.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (e *Engine, err error) {
	if cfg == nil {
		return nil, errors.Configuration("engine: nil configuration")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	shutdown, err := observability.Setup(ctx, observability.Config{
		Enabled:        cfg.Observability.Enabled,
		ServiceName:    cfg.Name,
		ServiceVersion: version.GetShortVersion(),
		Environment:    cfg.Environment,
		Endpoint:       cfg.Observability.Endpoint,
		Insecure:       cfg.Observability.Insecure,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("otlp", err)
	}
	closers = append(closers, func() error { return shutdown(context.Background()) })

	cache, err := content.NewCache(cfg.Cache.Dir)
	if err != nil {
		return nil, errors.Configuration("engine: content cache").WithCause(err)
	}
	closers = append(closers, cache.Close)

	disk, err := resolver.NewDisk(cfg.Resolver.BasePath)
	if err != nil {
		return nil, errors.Configuration("engine: resolver").WithCause(err)
	}

	stores := descriptor.NewProvider(descriptor.Config{Backend: cfg.Store.Backend, Path: cfg.Store.Path})
	closers = append(closers, stores.Close)

	reg := dag.NewRegistry()
	if err := stage.Register(reg); err != nil {
		return nil, err
	}
	for _, fn := range o.register {
		if err := fn(reg); err != nil {
			return nil, err
		}
	}

	loader := o.loader
	if loader == nil {
		loader = dag.NewFileLoader(cfg.Pipelines.Dirs...)
	}

	events := sse.NewHub()
	go events.Run()
	closers = append(closers, func() error { events.Stop(); return nil })

	metrics := observability.DefaultMetrics()
	sched, err := scheduler.New(scheduler.Config{
		HistorySize: cfg.Scheduler.HistorySize,
		PoolSize:    cfg.Scheduler.PoolSize,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		Metrics:     metrics,
		OnChange:    func(j scheduler.Job) { publishJob(events, j) },
	})
	if err != nil {
		return nil, err
	}

	builder := dag.NewBuilder(reg, dag.Services{
		Cache:     cache,
		Resolvers: map[string]resolver.Resolver{resolver.Name: disk},
		Stores:    stores,
	}, dag.WithInstrumentation(metrics))

	e = &Engine{
		cfg:       cfg,
		stores:    stores,
		cache:     cache,
		registry:  reg,
		loader:    loader,
		builder:   builder,
		scheduler: sched,
		events:    events,
		shutdown:  shutdown,
		log:       logger.Get("engine"),
	}
	e.log.Info("engine ready", logger.Fields(
		"store", cfg.Store.Backend,
		"resolver", disk.BasePath(),
		"pipelines", fmt.Sprint(cfg.Pipelines.Dirs),
	))
	return e, nil
}

// Load returns the configuration of the named pipeline.
func (e *Engine) Load(name string) (*dag.PipelineConfig, error) {
	return e.loader.Load(name)
}

// Validate checks the named pipeline without instantiating operators.
func (e *Engine) Validate(name string) error {
	cfg, err := e.loader.Load(name)
	if err != nil {
		return err
	}
	return e.builder.Validate(cfg)
}

// Build instantiates the named pipeline.
func (e *Engine) Build(ctx context.Context, name string) (*dag.Pipeline, error) {
	cfg, err := e.loader.Load(name)
	if err != nil {
		return nil, err
	}
	return e.builder.Build(ctx, cfg)
}

// Launch builds the named pipeline and starts it in the background.
func (e *Engine) Launch(ctx context.Context, name string) (string, error) {
	p, err := e.Build(ctx, name)
	if err != nil {
		return "", err
	}
	return e.scheduler.LaunchAsync(p)
}

// Run builds the named pipeline and runs it to completion.
func (e *Engine) Run(ctx context.Context, name string) (scheduler.Job, error) {
	p, err := e.Build(ctx, name)
	if err != nil {
		return scheduler.Job{}, err
	}
	return e.scheduler.LaunchBlocking(ctx, p)
}

func (e *Engine) Status(id string) scheduler.Status { return e.scheduler.Status(id) }
func (e *Engine) Cancel(id string) bool             { return e.scheduler.Cancel(id) }

// Job returns a running or finished job.
func (e *Engine) Job(id string) (scheduler.Job, bool) {
	return e.scheduler.Job(id)
}

// Jobs returns finished jobs, oldest first, followed by running ones.
func (e *Engine) Jobs() []scheduler.Job {
	return append(e.scheduler.History(), e.scheduler.Running()...)
}

// Operators describes every registered factory.
func (e *Engine) Operators() []dag.FactoryInfo {
	return e.registry.Describe()
}

// Pipelines lists the pipelines the loader can find.
func (e *Engine) Pipelines() ([]string, error) {
	return e.loader.List()
}

// Health checks the scheduler and the descriptor stores.
func (e *Engine) Health(ctx context.Context) *observability.ServiceHealth {
	return observability.Check(ctx, e.cfg.Name, version.GetShortVersion(), e.scheduler, e.stores)
}

// Events returns the hub job changes are published on.
func (e *Engine) Events() *sse.Hub { return e.events }

// JobEvent encodes j as the event a subscriber receives.
func JobEvent(j scheduler.Job) sse.Event {
	data, _ := json.Marshal(j)
	typ := EventJobStatus
	if j.Status.Done() {
		typ = EventJobFinished
	}
	return sse.Event{Type: typ, Data: data}
}

func publishJob(hub *sse.Hub, j scheduler.Job) {
	hub.Publish(JobTopic(j.ID)+":*", JobEvent(j))
}

// Close stops running jobs and releases every resource.
func (e *Engine) Close(ctx context.Context) error {
	err := e.scheduler.Close()
	e.events.Stop()
	return stderrors.Join(
		err,
		e.stores.Close(),
		e.cache.Close(),
		e.shutdown(ctx),
	)
}
