package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is a panic recovered while pulling a value.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current stack for a recovered value.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string { return fmt.Sprintf("pipeline: panic: %v", e.Value) }

// SafeNext pulls one value from iter, turning a panic into a *PanicError.
// Goroutines pulling on behalf of a consumer use it so a faulty stage
// fails the stream instead of the process.
func SafeNext[T any](ctx context.Context, iter Iterator[T]) (val T, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			val, ok, err = zero, false, NewPanicError(p)
		}
	}()
	return iter.Next(ctx)
}

// Releaser is implemented by values that hold resources. The concurrent
// combinators release values they pulled but never handed out.
type Releaser interface {
	Release() error
}

func release[T any](v T) {
	if r, ok := any(v).(Releaser); ok {
		_ = r.Release()
	}
}

// pump forwards every value of iter to ch until iter ends, fails or ctx
// is done. An error is forwarded once and ends the pump.
func pump[T any](ctx context.Context, iter Iterator[T], ch chan<- result[T]) {
	for {
		val, ok, err := SafeNext(ctx, iter)
		if !ok && err == nil {
			return
		}
		select {
		case ch <- result[T]{val: val, ok: ok, err: err}:
		case <-ctx.Done():
			if ok {
				release(val)
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// Buffer prefetches up to size values on a separate goroutine so a slow
// producer such as a directory walk runs ahead of its consumer.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return FromFunc(func(ctx context.Context) Iterator[T] {
		ctx, cancel := context.WithCancel(ctx)
		source := p.create(ctx)
		ch := make(chan result[T], size)
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer close(ch)
			pump(ctx, source, ch)
		}()
		it := &channelIter[T]{ch: ch}
		it.closer = func() error {
			cancel()
			<-done
			it.drain()
			return source.Close()
		}
		return it
	})
}

// Merge reads every input on its own goroutine and yields values in
// arrival order. The first error of any input is yielded. Closing the
// merged iterator stops the readers before it closes the inputs.
func Merge[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return FromFunc(func(ctx context.Context) Iterator[T] {
		ctx, cancel := context.WithCancel(ctx)
		ch := make(chan result[T], len(pipelines))
		iters := make([]Iterator[T], len(pipelines))
		var wg sync.WaitGroup
		for i, p := range pipelines {
			iters[i] = p.create(ctx)
			wg.Add(1)
			go func() {
				defer wg.Done()
				pump(ctx, iters[i], ch)
			}()
		}
		go func() {
			wg.Wait()
			close(ch)
		}()
		it := &channelIter[T]{ch: ch}
		it.closer = func() error {
			cancel()
			wg.Wait()
			it.drain()
			var first error
			for _, in := range iters {
				if err := in.Close(); err != nil && first == nil {
					first = err
				}
			}
			return first
		}
		return it
	})
}
