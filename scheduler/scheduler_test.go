package scheduler

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// blockIter blocks until its context ends.
type blockIter struct{}

func (blockIter) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func (blockIter) Close() error { return nil }

type panicOp struct{}

func (panicOp) Name() string        { return "panic" }
func (panicOp) Kind() operator.Kind { return operator.KindTransform }
func (panicOp) Stream(context.Context) operator.Stream {
	panic("boom")
}

func graph(name string, ops ...operator.Operator) *dag.Pipeline {
	p := &dag.Pipeline{Name: name}
	for _, op := range ops {
		p.Outputs = append(p.Outputs, dag.Output{Name: op.Name(), Operator: op})
	}
	return p
}

func itemsSource(name string, n int) operator.Operator {
	items := make([]*retrievable.Retrievable, n)
	for i := range items {
		items[i] = retrievable.New("ITEM")
	}
	return operator.NewSource(name, operator.SliceEnumerator(items...))
}

func blockingSource() operator.Operator {
	return operator.NewSource("block", operator.EnumeratorFunc(
		func(context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
			return blockIter{}, nil
		}))
}

func failingSource() operator.Operator {
	return operator.NewSource("fail", operator.EnumeratorFunc(
		func(context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
			return nil, stderrors.New("disk on fire")
		}))
}

func newScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitStatus(t *testing.T, s *Scheduler, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status(id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s status = %s, want %s", id, s.Status(id), want)
}

func TestLaunchBlocking_Completes(t *testing.T) {
	s := newScheduler(t, Config{})
	job, err := s.LaunchBlocking(context.Background(), graph("ok", itemsSource("a", 5), itemsSource("b", 2)))
	if err != nil {
		t.Fatalf("LaunchBlocking() error: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", job.Status)
	}
	if job.Elements != 7 {
		t.Errorf("elements = %d, want 7", job.Elements)
	}
	if job.Pipeline != "ok" || job.Ended.Before(job.Started) {
		t.Errorf("job = %+v", job)
	}
	if got := s.Status(job.ID); got != StatusCompleted {
		t.Errorf("Status() = %s, want COMPLETED", got)
	}
	if got := len(s.History()); got != 1 {
		t.Errorf("history has %d jobs, want 1", got)
	}
}

func TestLaunchBlocking_Failures(t *testing.T) {
	tests := []struct {
		name    string
		op      operator.Operator
		wantErr string
	}{
		{name: "stream error", op: failingSource(), wantErr: "disk on fire"},
		{name: "panic", op: panicOp{}, wantErr: "panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScheduler(t, Config{})
			job, err := s.LaunchBlocking(context.Background(), graph(tt.name, tt.op, itemsSource("ok", 3)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LaunchBlocking() error = %v, want %q", err, tt.wantErr)
			}
			if job.Status != StatusFailed {
				t.Errorf("status = %s, want FAILED", job.Status)
			}
			if !strings.Contains(job.Error, tt.wantErr) || job.Ended.IsZero() {
				t.Errorf("job = %+v", job)
			}
		})
	}
}

func TestLaunchBlocking_CallerCancels(t *testing.T) {
	s := newScheduler(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	job, err := s.LaunchBlocking(ctx, graph("cancel", blockingSource()))
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeCancelled {
		t.Fatalf("LaunchBlocking() error = %v, want CANCELLED", err)
	}
	if job.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", job.Status)
	}
}

func TestLaunchAsync_Cancel(t *testing.T) {
	s := newScheduler(t, Config{})
	id, err := s.LaunchAsync(graph("async", blockingSource()))
	if err != nil {
		t.Fatalf("LaunchAsync() error: %v", err)
	}
	if got := s.Status(id); got != StatusRunning {
		t.Fatalf("Status() = %s, want RUNNING", got)
	}
	if running := s.Running(); len(running) != 1 || running[0].ID != id {
		t.Fatalf("Running() = %+v", running)
	}
	if !s.Cancel(id) {
		t.Fatalf("first Cancel() = false")
	}
	if s.Cancel(id) {
		t.Errorf("second Cancel() = true")
	}
	waitStatus(t, s, id, StatusCancelled)
	if s.Cancel(id) {
		t.Errorf("Cancel() of a finished job = true")
	}
	job, ok := s.Job(id)
	if !ok || job.Status != StatusCancelled || job.Error != "" {
		t.Errorf("Job() = %+v, %v", job, ok)
	}
}

func TestLaunchAsync_Completes(t *testing.T) {
	s := newScheduler(t, Config{})
	id, err := s.LaunchAsync(graph("async", itemsSource("a", 4)))
	if err != nil {
		t.Fatalf("LaunchAsync() error: %v", err)
	}
	waitStatus(t, s, id, StatusCompleted)
	if job, _ := s.Job(id); job.Elements != 4 {
		t.Errorf("elements = %d, want 4", job.Elements)
	}
}

func TestStatus_Unknown(t *testing.T) {
	s := newScheduler(t, Config{})
	if got := s.Status("nope"); got != StatusUnknown {
		t.Errorf("Status() = %s, want UNKNOWN", got)
	}
	if s.Cancel("nope") {
		t.Errorf("Cancel() of unknown job = true")
	}
}

func TestHistory_IsBounded(t *testing.T) {
	s := newScheduler(t, Config{HistorySize: 2})
	var ids []string
	for range 3 {
		job, err := s.LaunchBlocking(context.Background(), graph("h", itemsSource("a", 1)))
		if err != nil {
			t.Fatalf("LaunchBlocking() error: %v", err)
		}
		ids = append(ids, job.ID)
	}
	h := s.History()
	if len(h) != 2 || h[0].ID != ids[1] || h[1].ID != ids[2] {
		t.Fatalf("History() = %+v, want the last two jobs oldest first", h)
	}
	if got := s.Status(ids[0]); got != StatusUnknown {
		t.Errorf("evicted job status = %s, want UNKNOWN", got)
	}
}

func TestHistory_DefaultSizeEvictsOldest(t *testing.T) {
	s := newScheduler(t, Config{})
	var ids []string
	for range 101 {
		job, err := s.LaunchBlocking(context.Background(), graph("h", itemsSource("a", 1)))
		if err != nil {
			t.Fatalf("LaunchBlocking() error: %v", err)
		}
		ids = append(ids, job.ID)
	}
	h := s.History()
	if len(h) != 100 {
		t.Fatalf("History() has %d jobs, want 100", len(h))
	}
	if h[0].ID != ids[1] || h[99].ID != ids[100] {
		t.Fatalf("History() spans %s..%s, want %s..%s", h[0].ID, h[99].ID, ids[1], ids[100])
	}
	if got := s.Status(ids[0]); got != StatusUnknown {
		t.Errorf("first job status = %s, want UNKNOWN", got)
	}
	if got := s.Status(ids[1]); got != StatusCompleted {
		t.Errorf("second job status = %s, want COMPLETED", got)
	}
}

func TestJobTimeout(t *testing.T) {
	s := newScheduler(t, Config{JobTimeout: 20 * time.Millisecond})
	job, err := s.LaunchBlocking(context.Background(), graph("slow", blockingSource()))
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("LaunchBlocking() error = %v, want deadline exceeded", err)
	}
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
}

func TestLaunchAsync_PoolSaturated(t *testing.T) {
	s := newScheduler(t, Config{PoolSize: 1})
	id, err := s.LaunchAsync(graph("first", blockingSource()))
	if err != nil {
		t.Fatalf("LaunchAsync() error: %v", err)
	}
	_, err = s.LaunchAsync(graph("second", blockingSource()))
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeServiceUnavailable {
		t.Fatalf("second LaunchAsync() error = %v, want SERVICE_UNAVAILABLE", err)
	}
	if n := len(s.Running()); n != 1 {
		t.Errorf("%d running jobs, want 1", n)
	}
	s.Cancel(id)
	waitStatus(t, s, id, StatusCancelled)
}

func TestLaunchAsync_UnboundedPool(t *testing.T) {
	s := newScheduler(t, Config{PoolSize: -1})
	var ids []string
	for range 20 {
		id, err := s.LaunchAsync(graph("wide", blockingSource()))
		if err != nil {
			t.Fatalf("LaunchAsync() error: %v", err)
		}
		ids = append(ids, id)
	}
	if n := len(s.Running()); n != 20 {
		t.Errorf("%d running jobs, want 20", n)
	}
	for _, id := range ids {
		s.Cancel(id)
	}
	for _, id := range ids {
		waitStatus(t, s, id, StatusCancelled)
	}
}

func TestClose(t *testing.T) {
	s := newScheduler(t, Config{})
	id, err := s.LaunchAsync(graph("long", blockingSource()))
	if err != nil {
		t.Fatalf("LaunchAsync() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got := s.Status(id); got != StatusCancelled {
		t.Errorf("status after Close = %s, want CANCELLED", got)
	}
	if _, err := s.LaunchAsync(graph("late", itemsSource("a", 1))); !stderrors.Is(err, ErrClosed) {
		t.Errorf("LaunchAsync() after Close error = %v, want ErrClosed", err)
	}
}

func TestDrain_ReleasesContent(t *testing.T) {
	cache, err := content.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	c, err := cache.Put(content.TypeBlob, "application/octet-stream", strings.NewReader("payload"))
	if err != nil {
		t.Fatal(err)
	}
	r := retrievable.New("ITEM")
	r.AddContent(c)

	s := newScheduler(t, Config{})
	if _, err := s.LaunchBlocking(context.Background(), graph("release", operator.NewSource("src", operator.SliceEnumerator(r)))); err != nil {
		t.Fatalf("LaunchBlocking() error: %v", err)
	}
	// Only the enumerator's own reference is left.
	if n := cache.Live(); n != 1 {
		t.Fatalf("live entries = %d, want 1", n)
	}
	if err := r.Release(); err != nil {
		t.Fatal(err)
	}
	if n := cache.Live(); n != 0 {
		t.Errorf("live entries after release = %d, want 0", n)
	}
}

func TestOnChange(t *testing.T) {
	var got []Status
	s := newScheduler(t, Config{OnChange: func(j Job) { got = append(got, j.Status) }})
	if _, err := s.LaunchBlocking(context.Background(), graph("p", itemsSource("src", 2))); err != nil {
		t.Fatalf("LaunchBlocking() error: %v", err)
	}
	if len(got) != 2 || got[0] != StatusRunning || got[1] != StatusCompleted {
		t.Fatalf("changes = %v, want [RUNNING COMPLETED]", got)
	}
}

func TestLaunchBlocking_PanicBehindMerge(t *testing.T) {
	faulty := operator.NewTransformer("extract", operator.KindExtract, itemsSource("src", 2),
		operator.OneToOne(func(context.Context, *retrievable.Retrievable) (*retrievable.Retrievable, error) {
			panic("extractor bug")
		}))
	merged := operator.NewCombine("merge", []operator.Operator{faulty, itemsSource("other", 2)})

	s := newScheduler(t, Config{})
	job, err := s.LaunchBlocking(context.Background(), graph("diamond", merged))
	if err == nil || !strings.Contains(err.Error(), "extractor bug") {
		t.Fatalf("LaunchBlocking() error = %v, want the extractor panic", err)
	}
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
}

func TestLaunchAsync_CancelDiamond(t *testing.T) {
	b := operator.NewBroadcast(blockingSource(), 3)
	branches := make([]operator.Operator, 3)
	for i := range branches {
		branches[i] = operator.NewTransformer("branch", operator.KindTransform, b,
			operator.OneToOne(func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
				return r, nil
			}))
	}
	s := newScheduler(t, Config{})
	id, err := s.LaunchAsync(graph("diamond", operator.NewCombine("merge", branches)))
	if err != nil {
		t.Fatalf("LaunchAsync() error: %v", err)
	}
	s.Cancel(id)
	waitStatus(t, s, id, StatusCancelled)
}
