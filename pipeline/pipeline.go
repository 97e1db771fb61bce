package pipeline

import "context"

// Iterator is a pull-based stream of values.
type Iterator[T any] interface {
	// Next returns the next value, or ok=false once the stream has ended.
	// An error ends the stream.
	Next(ctx context.Context) (val T, ok bool, err error)
	// Close releases the iterator and everything it pulls from.
	Close() error
}

// Pipeline is a lazy, restartable description of a stream. Each Iter call
// starts an independent run.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Iter starts a run. The caller must Close the iterator.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}

// FromFunc creates a pipeline whose runs are produced by fn.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: fn}
}

// From wraps an existing iterator. The pipeline can run only once.
func From[T any](iter Iterator[T]) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] { return iter })
}

// FromSlice yields the items in order.
func FromSlice[T any](items []T) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] {
		i := 0
		return funcIter[T]{next: func(context.Context) (T, bool, error) {
			if i >= len(items) {
				var zero T
				return zero, false, nil
			}
			i++
			return items[i-1], true, nil
		}}
	})
}

// Just yields its arguments.
func Just[T any](items ...T) *Pipeline[T] {
	return FromSlice(items)
}

// Failed yields err on the first pull and ends.
func Failed[T any](err error) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] {
		done := false
		return funcIter[T]{next: func(context.Context) (T, bool, error) {
			var zero T
			if done {
				return zero, false, nil
			}
			done = true
			return zero, false, err
		}}
	})
}

// Collect runs p to its end. On error it returns the values read so far.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	iter := p.create(ctx)
	defer iter.Close()
	var out []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return out, err
		}
		out = append(out, val)
	}
}

// funcIter adapts closures to Iterator. A nil close is a no-op.
type funcIter[T any] struct {
	next  func(context.Context) (T, bool, error)
	close func() error
}

func (it funcIter[T]) Next(ctx context.Context) (T, bool, error) { return it.next(ctx) }

func (it funcIter[T]) Close() error {
	if it.close == nil {
		return nil
	}
	return it.close()
}

// result carries one pull through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// channelIter reads the results produced by the concurrent combinators.
type channelIter[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case r, open := <-it.ch:
		if !open {
			// Producers stop early on cancellation; report it rather
			// than a clean end.
			return zero, false, ctx.Err()
		}
		return r.val, r.ok, r.err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// drain releases values left in the channel. Producers must have stopped.
func (it *channelIter[T]) drain() {
	for {
		select {
		case r, open := <-it.ch:
			if !open {
				return
			}
			if r.ok {
				release(r.val)
			}
		default:
			return
		}
	}
}

func (it *channelIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}
