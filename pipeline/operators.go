package pipeline

import "context"

// Map applies fn to every value. An error from fn ends the stream.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return FromFunc(func(ctx context.Context) Iterator[O] {
		src := p.create(ctx)
		return funcIter[O]{close: src.Close, next: func(ctx context.Context) (O, bool, error) {
			var zero O
			in, ok, err := src.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			out, err := fn(ctx, in)
			if err != nil {
				return zero, false, err
			}
			return out, true, nil
		}}
	})
}

// FlatMap replaces every value by the stream fn returns for it.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (Iterator[O], error)) *Pipeline[O] {
	return FromFunc(func(ctx context.Context) Iterator[O] {
		src := p.create(ctx)
		var cur Iterator[O]
		closeCur := func() {
			if cur != nil {
				_ = cur.Close()
				cur = nil
			}
		}
		return funcIter[O]{
			close: func() error {
				closeCur()
				return src.Close()
			},
			next: func(ctx context.Context) (O, bool, error) {
				var zero O
				for {
					if cur != nil {
						val, ok, err := cur.Next(ctx)
						if err != nil || ok {
							return val, ok, err
						}
						closeCur()
					}
					in, ok, err := src.Next(ctx)
					if err != nil || !ok {
						return zero, false, err
					}
					if cur, err = fn(ctx, in); err != nil {
						return zero, false, err
					}
				}
			},
		}
	})
}

// Filter keeps the values keep accepts.
func Filter[T any](p *Pipeline[T], keep func(T) bool) *Pipeline[T] {
	return FromFunc(func(ctx context.Context) Iterator[T] {
		src := p.create(ctx)
		return funcIter[T]{close: src.Close, next: func(ctx context.Context) (T, bool, error) {
			for {
				val, ok, err := src.Next(ctx)
				if err != nil || !ok || keep(val) {
					return val, ok, err
				}
			}
		}}
	})
}

// TakeThrough yields values up to and including the first one last
// accepts, then ends without pulling further.
func TakeThrough[T any](p *Pipeline[T], last func(T) bool) *Pipeline[T] {
	return FromFunc(func(ctx context.Context) Iterator[T] {
		src := p.create(ctx)
		done := false
		return funcIter[T]{close: src.Close, next: func(ctx context.Context) (T, bool, error) {
			if done {
				var zero T
				return zero, false, nil
			}
			val, ok, err := src.Next(ctx)
			done = err != nil || !ok || last(val)
			return val, ok && err == nil, err
		}}
	})
}

// Concat yields every value of each pipeline before moving to the next.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return FromFunc(func(ctx context.Context) Iterator[T] {
		iters := make([]Iterator[T], len(pipelines))
		for i, p := range pipelines {
			iters[i] = p.create(ctx)
		}
		idx := 0
		return funcIter[T]{
			close: func() error {
				var first error
				for _, it := range iters {
					if err := it.Close(); err != nil && first == nil {
						first = err
					}
				}
				return first
			},
			next: func(ctx context.Context) (T, bool, error) {
				for idx < len(iters) {
					val, ok, err := iters[idx].Next(ctx)
					if err != nil || ok {
						return val, ok, err
					}
					idx++
				}
				var zero T
				return zero, false, nil
			},
		}
	})
}
