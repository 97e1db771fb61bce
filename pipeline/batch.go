package pipeline

import (
	"context"
	"time"
)

// Batch groups values into slices of up to size values. With a timeout, a
// batch is also closed once timeout has elapsed since its first value; the
// check happens as values arrive, so a stalled source is not interrupted.
//
// size=0 means collect until timeout. timeout=0 means collect until size.
// Both zero defaults to size=1.
//
// A source error is reported after the partial batch preceding it.
func Batch[T any](p *Pipeline[T], size int, timeout time.Duration) *Pipeline[[]T] {
	if size <= 0 && timeout <= 0 {
		size = 1
	}
	return FromFunc(func(ctx context.Context) Iterator[[]T] {
		src := p.create(ctx)
		var (
			ended   bool
			pending error
		)
		full := func(batch []T, started time.Time) bool {
			if size > 0 && len(batch) >= size {
				return true
			}
			return timeout > 0 && time.Since(started) >= timeout
		}
		return funcIter[[]T]{close: src.Close, next: func(ctx context.Context) ([]T, bool, error) {
			if pending != nil {
				err := pending
				pending, ended = nil, true
				return nil, false, err
			}
			if ended {
				return nil, false, nil
			}
			var (
				batch   []T
				started time.Time
			)
			for {
				val, ok, err := src.Next(ctx)
				switch {
				case err != nil:
					if len(batch) == 0 {
						ended = true
						return nil, false, err
					}
					pending = err
					return batch, true, nil
				case !ok:
					ended = true
					return batch, len(batch) > 0, nil
				}
				if len(batch) == 0 {
					started = time.Now()
				}
				batch = append(batch, val)
				if full(batch, started) {
					return batch, true, nil
				}
			}
		}}
	})
}
