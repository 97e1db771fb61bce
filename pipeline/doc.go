// Package pipeline provides generic, pull-based iterators and the combinators
// the stream operators are assembled from.
//
// A Pipeline is lazy: each call to Iter creates a fresh Iterator and no work
// happens until values are pulled. Each stage pulls from the previous stage
// on demand, so a slow consumer slows its producers without extra flow
// control.
//
// Synchronous combinators run on the consumer's goroutine:
//
//   - Map, FlatMap, Filter
//   - TakeThrough: stop after the first value matching a predicate
//   - Concat: join pipelines one after another
//   - Batch: group values into slices
//
// Concurrent combinators own goroutines that stop when the iterator is closed
// or the context is cancelled:
//
//   - Buffer: prefetch into a bounded channel
//   - Merge: interleave several pipelines as values arrive (order not preserved)
//
// Usage:
//
//	src := pipeline.FromSlice(records)
//	valid := pipeline.Filter(src, func(r Record) bool { return r.Field != "" })
//	out, err := pipeline.Collect(ctx, valid)
package pipeline
