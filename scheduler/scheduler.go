// Package scheduler runs built pipelines as jobs.
//
// Asynchronous jobs run on a bounded worker pool; every output of a
// pipeline is drained on its own goroutine. The scheduler keeps a table of
// running jobs and a bounded history of finished ones.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/observability"
	"github.com/kbukum/mediaflow/retrievable"
)

// ErrClosed is returned when launching on a closed scheduler.
var ErrClosed = stderrors.New("scheduler: closed")

// Config sizes a scheduler.
type Config struct {
	// HistorySize bounds the number of finished jobs kept. Default 100.
	HistorySize int
	// PoolSize bounds the number of concurrently running async jobs.
	// Zero means the default of 16. A negative size leaves the pool
	// unbounded, so LaunchAsync never reports saturation.
	PoolSize int
	// JobTimeout fails jobs running longer. Zero disables it.
	JobTimeout time.Duration
	Metrics    *observability.Metrics
	// OnChange is called when a job starts and when it finishes. It runs
	// on the job's goroutine and must not block.
	OnChange func(Job)
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
	if c.PoolSize == 0 {
		c.PoolSize = 16
	}
}

// Scheduler launches and tracks jobs.
type Scheduler struct {
	cfg  Config
	pool *ants.Pool
	log  *logger.Logger

	mu      sync.Mutex
	running map[string]*run
	history *history
	closed  bool
	wg      sync.WaitGroup
}

type run struct {
	job             Job
	cancel          context.CancelFunc
	cancelRequested bool
	elements        atomic.Int64
}

// New creates a scheduler.
func New(cfg Config) (*Scheduler, error) {
	cfg.ApplyDefaults()
	size := cfg.PoolSize
	if size < 0 {
		size = -1
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("scheduler: creating pool: %w", err)
	}
	return &Scheduler{
		cfg:     cfg,
		pool:    pool,
		log:     logger.Get("scheduler"),
		running: make(map[string]*run),
		history: newHistory(cfg.HistorySize),
	}, nil
}

// LaunchAsync starts p on the worker pool and returns the job id at once.
// It fails when the pool is saturated.
func (s *Scheduler) LaunchAsync(p *dag.Pipeline) (string, error) {
	ctx, cancel := s.jobContext(context.Background())
	r, err := s.register(p, cancel)
	if err != nil {
		cancel()
		return "", err
	}
	if err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.execute(ctx, r, p)
	}); err != nil {
		s.mu.Lock()
		delete(s.running, r.job.ID)
		s.mu.Unlock()
		s.wg.Done()
		cancel()
		return "", errors.ServiceUnavailable("scheduler").WithCause(err)
	}
	return r.job.ID, nil
}

// LaunchBlocking runs p on the calling goroutine and returns the finished
// job. The error is the job's failure, or a cancellation error.
func (s *Scheduler) LaunchBlocking(ctx context.Context, p *dag.Pipeline) (Job, error) {
	ctx, cancel := s.jobContext(ctx)
	r, err := s.register(p, cancel)
	if err != nil {
		cancel()
		return Job{}, err
	}
	defer s.wg.Done()
	return s.execute(ctx, r, p)
}

func (s *Scheduler) jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.JobTimeout > 0 {
		return context.WithTimeout(parent, s.cfg.JobTimeout)
	}
	return context.WithCancel(parent)
}

func (s *Scheduler) register(p *dag.Pipeline, cancel context.CancelFunc) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	r := &run{
		job: Job{
			ID:       uuid.NewString(),
			Pipeline: p.Name,
			Status:   StatusRunning,
			Started:  time.Now(),
		},
		cancel: cancel,
	}
	s.running[r.job.ID] = r
	s.wg.Add(1)
	return r, nil
}

func (s *Scheduler) execute(ctx context.Context, r *run, p *dag.Pipeline) (job Job, err error) {
	ctx = logger.ContextWithJob(ctx, r.job.ID, p.Name)
	ctx, span := observability.StartSpan(ctx, observability.SpanJob, trace.WithAttributes(
		attribute.String(observability.AttrJobID, r.job.ID),
		attribute.String(observability.AttrPipeline, p.Name),
	))
	log := s.log.WithContext(ctx)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordJobStart(ctx, p.Name)
	}
	log.Info("job started", logger.Fields(logger.FieldCount, len(p.Outputs)))
	s.notify(r.snapshot())

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scheduler: job panicked: %v\n%s", rec, debug.Stack())
		}
		job, err = s.finish(ctx, r, err)
		span.SetAttributes(
			attribute.String(observability.AttrStatus, string(job.Status)),
			attribute.Int64(observability.AttrElementCount, job.Elements),
		)
		if job.Status == StatusFailed {
			observability.SetSpanError(ctx, err)
		}
		span.End()
		s.notify(job)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordJobEnd(ctx, p.Name, string(job.Status), job.Duration())
		}
		if err != nil && job.Status == StatusFailed {
			log.WithError(err).Error("job failed", logger.Fields(logger.FieldCount, job.Elements))
		} else {
			log.Info("job finished", logger.Fields(logger.FieldStatus, job.Status, logger.FieldCount, job.Elements))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, out := range p.Outputs {
		g.Go(func() error {
			return s.drain(gctx, r, out)
		})
	}
	return Job{}, g.Wait()
}

// drain pulls one output to its end, releasing every element.
func (s *Scheduler) drain(ctx context.Context, r *run, out dag.Output) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scheduler: output %s panicked: %v\n%s", out.Name, rec, debug.Stack())
		}
	}()
	stream := out.Operator.Stream(ctx)
	defer stream.Close()
	for {
		e, ok, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if !ok || retrievable.IsTerminal(e) {
			return nil
		}
		r.elements.Add(1)
		if err := e.Release(); err != nil {
			s.log.Debug("releasing element", logger.Fields(
				logger.FieldRetrievableID, e.ID().String(),
				logger.FieldError, err.Error(),
			))
		}
	}
}

// finish moves r from the running table to the history and returns the
// final job with the error reported to LaunchBlocking callers.
func (s *Scheduler) finish(ctx context.Context, r *run, err error) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := r.cancelRequested || stderrors.Is(ctx.Err(), context.Canceled) ||
		(err != nil && stderrors.Is(err, context.Canceled))
	r.cancel()

	job := r.job
	job.Ended = time.Now()
	job.Elements = r.elements.Load()
	switch {
	case cancelled:
		job.Status = StatusCancelled
		err = errors.Cancelled("job " + job.ID)
	case err != nil:
		job.Status = StatusFailed
		job.Error = err.Error()
	default:
		job.Status = StatusCompleted
	}
	delete(s.running, job.ID)
	s.history.add(job)
	return job, err
}

// Status returns RUNNING for a live job, otherwise the status of its most
// recent history entry, otherwise UNKNOWN.
func (s *Scheduler) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[id]; ok {
		return StatusRunning
	}
	if j, ok := s.history.find(id); ok {
		return j.Status
	}
	return StatusUnknown
}

// Cancel requests cancellation of a running job. It reports false when the
// job is not running or cancellation was already requested.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.running[id]
	if !ok || r.cancelRequested {
		return false
	}
	r.cancelRequested = true
	r.cancel()
	s.log.Info("job cancellation requested", logger.Fields(logger.FieldJobID, id))
	return true
}

// Job returns a snapshot of a running or finished job.
func (s *Scheduler) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.running[id]; ok {
		return r.snapshot(), true
	}
	return s.history.find(id)
}

// Running returns the running jobs, oldest first.
func (s *Scheduler) Running() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.running))
	for _, r := range s.running {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// History returns finished jobs, oldest first.
func (s *Scheduler) History() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.list()
}

// Close cancels running jobs, waits for them and releases the pool.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, r := range s.running {
		r.cancelRequested = true
		r.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Release()
	return nil
}

func (s *Scheduler) notify(j Job) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(j)
	}
}

func (r *run) snapshot() Job {
	j := r.job
	j.Elements = r.elements.Load()
	return j
}

// CheckHealth reports the scheduler as down once closed and degraded when
// every pool worker is busy.
func (s *Scheduler) CheckHealth(context.Context) observability.Health {
	s.mu.Lock()
	closed, running := s.closed, len(s.running)
	s.mu.Unlock()

	h := observability.Health{
		Name:   "scheduler",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"running":   strconv.Itoa(running),
			"pool_free": strconv.Itoa(s.pool.Free()),
		},
	}
	switch {
	case closed:
		h.Status, h.Message = observability.HealthStatusDown, "closed"
	case s.pool.Free() == 0:
		h.Status, h.Message = observability.HealthStatusDegraded, "worker pool saturated"
	}
	return h
}
