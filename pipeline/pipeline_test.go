package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func collect[T any](t *testing.T, p *Pipeline[T]) []T {
	t.Helper()
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestFromSlice_Collect(t *testing.T) {
	got := collect(t, FromSlice([]int{1, 2, 3}))
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := collect(t, Just[int]()); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestFromFunc_Restartable(t *testing.T) {
	var created atomic.Int32
	p := FromFunc(func(context.Context) Iterator[int] {
		created.Add(1)
		return Just(7).Iter(context.Background())
	})
	collect(t, p)
	collect(t, p)
	if created.Load() != 2 {
		t.Errorf("expected a fresh iterator per run, got %d", created.Load())
	}
}

func TestFailed(t *testing.T) {
	boom := errors.New("source unreadable")
	_, err := Collect(context.Background(), Failed[int](boom))
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestMap_Error(t *testing.T) {
	p := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (string, error) {
		if n == 2 {
			return "", errors.New("decode failed")
		}
		return strings.Repeat("x", n), nil
	})
	got, err := Collect(context.Background(), p)
	if err == nil || err.Error() != "decode failed" {
		t.Fatalf("expected decode error, got %v", err)
	}
	if diff := cmp.Diff([]string{"x"}, got); diff != "" {
		t.Errorf("values before the error (-want +got):\n%s", diff)
	}
}

func TestFlatMap(t *testing.T) {
	p := FlatMap(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (Iterator[int], error) {
		if n == 2 {
			return Just[int]().Iter(context.Background()), nil
		}
		return Just(n, n*10).Iter(context.Background()), nil
	})
	if diff := cmp.Diff([]int{1, 10, 3, 30}, collect(t, p)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	evens := Filter(FromSlice([]int{1, 2, 3, 4, 5, 6}), func(n int) bool { return n%2 == 0 })
	if diff := cmp.Diff([]int{2, 4, 6}, collect(t, evens)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTakeThrough(t *testing.T) {
	var pulled atomic.Int32
	src := Map(FromSlice([]int{1, 2, -1, 3, 4}), func(_ context.Context, n int) (int, error) {
		pulled.Add(1)
		return n, nil
	})
	got := collect(t, TakeThrough(src, func(n int) bool { return n < 0 }))
	if diff := cmp.Diff([]int{1, 2, -1}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if pulled.Load() != 3 {
		t.Errorf("expected no pulls after the marker, got %d", pulled.Load())
	}
}

func TestConcat(t *testing.T) {
	got := collect(t, Concat(Just(1, 2), Just[int](), Just(3)))
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuffer(t *testing.T) {
	got := collect(t, Buffer(FromSlice([]int{1, 2, 3, 4, 5}), 3))
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, got); diff != "" {
		t.Errorf("buffer must preserve order (-want +got):\n%s", diff)
	}
}

func TestBuffer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocked := FromFunc(func(context.Context) Iterator[int] {
		return &channelIter[int]{ch: make(chan result[int])}
	})
	iter := Buffer(blocked, 1).Iter(ctx)
	defer iter.Close()

	cancel()
	if _, _, err := iter.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	got := collect(t, Merge(Just(1, 2, 3), Just(10, 20, 30)))
	sort.Ints(got)
	if diff := cmp.Diff([]int{1, 2, 3, 10, 20, 30}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Error(t *testing.T) {
	boom := errors.New("branch failed")
	_, err := Collect(context.Background(), Merge(Just(1), Failed[int](boom)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected branch error, got %v", err)
	}
}

func TestIter_Exhaustion(t *testing.T) {
	ctx := context.Background()
	iter := Just(1).Iter(ctx)
	defer iter.Close()

	if v, ok, err := iter.Next(ctx); err != nil || !ok || v != 1 {
		t.Fatalf("first Next: val=%d ok=%v err=%v", v, ok, err)
	}
	for i := 0; i < 2; i++ {
		if _, ok, err := iter.Next(ctx); err != nil || ok {
			t.Fatalf("exhausted iterator must stay exhausted: ok=%v err=%v", ok, err)
		}
	}
}

func TestBatch_BySize(t *testing.T) {
	got := collect(t, Batch(FromSlice([]int{1, 2, 3, 4, 5}), 2, 0))
	if diff := cmp.Diff([][]int{{1, 2}, {3, 4}, {5}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := collect(t, Batch(Just[int](), 3, 0)); len(got) != 0 {
		t.Errorf("expected no batches, got %v", got)
	}
	if got := collect(t, Batch(Just(1, 2, 3), 0, 0)); len(got) != 3 {
		t.Errorf("expected size=1 default, got %v", got)
	}
}

func TestBatch_ErrorAfterPartialBatch(t *testing.T) {
	boom := errors.New("upstream failed")
	src := Concat(Just(1, 2, 3), Failed[int](boom))
	iter := Batch(src, 2, 0).Iter(context.Background())
	defer iter.Close()
	ctx := context.Background()

	if b, ok, err := iter.Next(ctx); err != nil || !ok || len(b) != 2 {
		t.Fatalf("first batch: %v %v %v", b, ok, err)
	}
	if b, ok, err := iter.Next(ctx); err != nil || !ok || len(b) != 1 {
		t.Fatalf("partial batch: %v %v %v", b, ok, err)
	}
	if _, _, err := iter.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("error must surface after the partial batch, got %v", err)
	}
}

func TestBatch_WithTimeout(t *testing.T) {
	ch := make(chan result[int], 10)
	go func() {
		ch <- result[int]{val: 1, ok: true}
		ch <- result[int]{val: 2, ok: true}
		time.Sleep(150 * time.Millisecond)
		ch <- result[int]{val: 3, ok: true}
		close(ch)
	}()
	src := FromFunc(func(context.Context) Iterator[int] { return &channelIter[int]{ch: ch} })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := Collect(ctx, Batch(src, 100, 50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, b := range got {
		total += len(b)
	}
	if total != 3 {
		t.Errorf("expected 3 values across batches, got %v", got)
	}
}

// trackedIter yields values slowly and records whether Close ran while a
// Next call was still in flight.
type trackedIter struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (it *trackedIter) Next(ctx context.Context) (int, bool, error) {
	it.active.Add(1)
	defer it.active.Add(-1)
	select {
	case <-ctx.Done():
		time.Sleep(20 * time.Millisecond)
		return 0, false, ctx.Err()
	case <-time.After(time.Millisecond):
		return 1, true, nil
	}
}

func (it *trackedIter) Close() error {
	if it.active.Load() > 0 {
		it.overlap.Store(true)
	}
	return nil
}

func TestConcurrent_CloseWaitsForReaders(t *testing.T) {
	boom := errors.New("branch failed")
	tests := []struct {
		name string
		wrap func(*Pipeline[int]) *Pipeline[int]
	}{
		{name: "merge", wrap: func(p *Pipeline[int]) *Pipeline[int] { return Merge(p, Failed[int](boom)) }},
		{name: "buffer", wrap: func(p *Pipeline[int]) *Pipeline[int] {
			return Map(Buffer(p, 4), func(_ context.Context, n int) (int, error) { return n, boom })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &trackedIter{}
			_, err := Collect(context.Background(), tt.wrap(From[int](src)))
			if !errors.Is(err, boom) {
				t.Fatalf("Collect() error = %v, want %v", err, boom)
			}
			if src.overlap.Load() {
				t.Fatal("input closed while a reader was still pulling from it")
			}
		})
	}
}

func TestConcurrent_PanicBecomesError(t *testing.T) {
	faulty := Map(Just(1, 2), func(_ context.Context, n int) (int, error) {
		if n == 2 {
			panic("decoder bug")
		}
		return n, nil
	})
	for name, p := range map[string]*Pipeline[int]{
		"merge":  Merge(faulty, Just(10)),
		"buffer": Buffer(faulty, 1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Collect(context.Background(), p)
			var perr *PanicError
			if !errors.As(err, &perr) || perr.Value != "decoder bug" || len(perr.Stack) == 0 {
				t.Fatalf("Collect() error = %v, want a recovered panic", err)
			}
		})
	}
}

type resource struct{ released *atomic.Int32 }

func (r resource) Release() error {
	r.released.Add(1)
	return nil
}

func TestBuffer_ReleasesUnreadValues(t *testing.T) {
	var pulled, released atomic.Int32
	src := Map(FromSlice(make([]int, 8)), func(context.Context, int) (resource, error) {
		pulled.Add(1)
		return resource{released: &released}, nil
	})
	ctx := context.Background()
	iter := Buffer(src, 4).Iter(ctx)
	if _, ok, err := iter.Next(ctx); err != nil || !ok {
		t.Fatalf("Next() = %v, %v", ok, err)
	}
	if err := iter.Close(); err != nil {
		t.Fatal(err)
	}
	if got, want := released.Load(), pulled.Load()-1; got != want {
		t.Fatalf("released %d values, want %d (pulled %d, consumed 1)", got, want, pulled.Load())
	}
}
