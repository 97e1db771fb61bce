package operator

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/retrievable"
)

// ErrInputEnded is returned when a merge input stops without Terminal.
var ErrInputEnded = errors.New("operator: merge input ended without terminal")

// ConflictPolicy decides which descriptor survives when two branches of a
// Combine carry different descriptors for the same field.
type ConflictPolicy int

const (
	// KeepFirst keeps the descriptor that arrived first.
	KeepFirst ConflictPolicy = iota
	// KeepLast replaces it with the one that arrived last.
	KeepLast
	// KeepAll keeps both.
	KeepAll
)

// ParseConflictPolicy parses "first", "last" or "all". Empty is KeepFirst.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "", "first", "FIRST":
		return KeepFirst, nil
	case "last", "LAST":
		return KeepLast, nil
	case "all", "ALL":
		return KeepAll, nil
	default:
		return KeepFirst, errors.New("operator: unknown conflict policy " + s)
	}
}

// CombineOption configures a combine.
type CombineOption func(*Combine)

// WithConflictPolicy sets the descriptor conflict policy.
func WithConflictPolicy(p ConflictPolicy) CombineOption {
	return func(c *Combine) { c.policy = p }
}

// Combine merges N inputs by retrievable id. An element is emitted once
// every input has supplied its version; elements some input never
// supplied are emitted in arrival order after all inputs have ended.
// A single Terminal follows.
type Combine struct {
	name   string
	inputs []Operator
	policy ConflictPolicy
}

// NewCombine creates a coalescing merge over inputs.
func NewCombine(name string, inputs []Operator, opts ...CombineOption) *Combine {
	c := &Combine{name: name, inputs: inputs}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Combine) Name() string           { return c.name }
func (c *Combine) Kind() Kind             { return KindMerge }
func (c *Combine) Inputs() []Operator     { return c.inputs }
func (c *Combine) Policy() ConflictPolicy { return c.policy }

type taggedItem struct {
	input int
	r     *retrievable.Retrievable
	err   error
}

func (c *Combine) Stream(ctx context.Context) Stream {
	mctx, cancel := context.WithCancel(ctx)
	ch := make(chan taggedItem, len(c.inputs))
	streams := make([]Stream, len(c.inputs))
	var wg sync.WaitGroup

	for i, in := range c.inputs {
		streams[i] = Seal(in.Stream(mctx))
		wg.Add(1)
		go func(i int, name string, s Stream) {
			defer wg.Done()
			for {
				r, ok, err := safeNext(mctx, name, s)
				if !ok && err == nil {
					return
				}
				select {
				case ch <- taggedItem{input: i, r: r, err: err}:
				case <-mctx.Done():
					if r != nil {
						_ = r.Release()
					}
					return
				}
				if err != nil || retrievable.IsTerminal(r) {
					return
				}
			}
		}(i, in.Name(), streams[i])
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	return Seal(&combineIter{
		combine: c,
		ch:      ch,
		pending: make(map[uuid.UUID]*partial),
		closer: func() error {
			cancel()
			wg.Wait()
			var first error
			for _, s := range streams {
				if err := s.Close(); err != nil && first == nil {
					first = err
				}
			}
			return first
		},
	})
}

type partial struct {
	merged *retrievable.Retrievable
	seen   []bool
	count  int
}

type combineIter struct {
	combine *Combine
	ch      <-chan taggedItem
	closer  func() error

	pending   map[uuid.UUID]*partial
	order     []uuid.UUID
	ready     []*retrievable.Retrievable
	sentinels int
	flushing  bool
}

func (it *combineIter) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	n := len(it.combine.inputs)
	for {
		if len(it.ready) > 0 {
			r := it.ready[0]
			it.ready = it.ready[1:]
			return r, true, nil
		}
		if it.flushing {
			for len(it.order) > 0 {
				id := it.order[0]
				it.order = it.order[1:]
				if p, ok := it.pending[id]; ok {
					delete(it.pending, id)
					return p.merged, true, nil
				}
			}
			return retrievable.Terminal, true, nil
		}

		select {
		case item, open := <-it.ch:
			if !open {
				if err := ctx.Err(); err != nil {
					return nil, false, err
				}
				return nil, false, &Error{Operator: it.combine.name, Err: ErrInputEnded}
			}
			if item.err != nil {
				return nil, false, item.err
			}
			if retrievable.IsTerminal(item.r) {
				it.sentinels++
				if it.sentinels == n {
					it.flushing = true
				}
				continue
			}
			it.add(item.input, item.r, n)
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (it *combineIter) add(input int, r *retrievable.Retrievable, n int) {
	p, ok := it.pending[r.ID()]
	if !ok {
		p = &partial{merged: r, seen: make([]bool, n)}
		it.pending[r.ID()] = p
		it.order = append(it.order, r.ID())
	} else {
		mergeInto(p.merged, r, it.combine.policy)
	}
	if !p.seen[input] {
		p.seen[input] = true
		p.count++
	}
	if p.count == n {
		delete(it.pending, r.ID())
		it.ready = append(it.ready, p.merged)
	}
}

// Close stops the input readers, then releases everything still held and
// closes the inputs.
func (it *combineIter) Close() error {
	err := it.closer()
	for {
		item, open := <-it.ch
		if !open {
			break
		}
		if item.r != nil {
			_ = item.r.Release()
		}
	}
	for _, r := range it.ready {
		_ = r.Release()
	}
	for _, p := range it.pending {
		_ = p.merged.Release()
	}
	it.ready, it.pending = nil, nil
	return err
}

// mergeInto folds src into dst. Content is unioned by content id and
// descriptors are deduplicated by descriptor id before the conflict
// policy applies to same-field descriptors.
func mergeInto(dst, src *retrievable.Retrievable, policy ConflictPolicy) {
	for _, c := range src.Content {
		if slices.ContainsFunc(dst.Content, func(have content.Content) bool { return have.ID() == c.ID() }) {
			_ = content.Release(c)
			continue
		}
		dst.Content = append(dst.Content, c)
	}

	for _, d := range src.Descriptors {
		if slices.ContainsFunc(dst.Descriptors, func(have *retrievable.Descriptor) bool { return have.ID == d.ID }) {
			continue
		}
		idx := slices.IndexFunc(dst.Descriptors, func(have *retrievable.Descriptor) bool { return have.Field == d.Field })
		switch {
		case idx < 0 || policy == KeepAll:
			dst.Descriptors = append(dst.Descriptors, d)
		case policy == KeepLast:
			dst.Descriptors[idx] = d
		}
	}

	for k, v := range src.Attributes {
		if _, exists := dst.Attributes[k]; !exists || policy == KeepLast {
			dst.SetAttribute(k, v)
		}
	}

	for _, rel := range src.Relationships {
		if !slices.ContainsFunc(dst.Relationships, func(have retrievable.Relationship) bool {
			return have.Predicate == rel.Predicate && have.ObjectID == rel.ObjectID
		}) {
			dst.Relationships = append(dst.Relationships, rel)
		}
	}
}
