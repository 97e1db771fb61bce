package operator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// DefaultBroadcastBuffer is the per-subscriber channel capacity.
const DefaultBroadcastBuffer = 16

// BroadcastOption configures a broadcast.
type BroadcastOption func(*Broadcast)

// WithBroadcastBuffer sets the per-subscriber channel capacity. The
// slowest subscriber paces the upstream once its buffer is full.
func WithBroadcastBuffer(n int) BroadcastOption {
	return func(b *Broadcast) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// Broadcast shares one upstream between a fixed number of subscribers.
// Every call to Stream is one subscription; once all subscribers of a
// generation have joined, the upstream is streamed once and each element
// is delivered to every subscriber in the same order. The first live
// subscriber gets the original element, the others get copies.
type Broadcast struct {
	input       Operator
	subscribers int
	buffer      int
	log         *logger.Logger

	mu  sync.Mutex
	gen *generation
}

// NewBroadcast creates a broadcast of input to n subscribers.
func NewBroadcast(input Operator, n int, opts ...BroadcastOption) *Broadcast {
	if n < 1 {
		n = 1
	}
	b := &Broadcast{
		input:       input,
		subscribers: n,
		buffer:      DefaultBroadcastBuffer,
		log:         logger.Get("operator"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name is the upstream's name; a broadcast is transparent in the graph.
func (b *Broadcast) Name() string     { return b.input.Name() }
func (b *Broadcast) Kind() Kind       { return KindBroadcast }
func (b *Broadcast) Input() Operator  { return b.input }
func (b *Broadcast) Subscribers() int { return b.subscribers }

// Stream subscribes to the current generation. Subscribers block until
// the generation is complete.
func (b *Broadcast) Stream(ctx context.Context) Stream {
	b.mu.Lock()
	if b.gen == nil {
		b.gen = newGeneration(ctx, b.subscribers, b.buffer)
	}
	g := b.gen
	sub := g.join(ctx)
	full := g.joined == b.subscribers
	if full {
		b.gen = nil
	}
	b.mu.Unlock()

	if full {
		go g.pump(b.input, b.log)
	}
	return &subscription{sub: sub}
}

type broadcastItem struct {
	r   *retrievable.Retrievable
	err error
}

// generation is one pass of the upstream shared by all subscribers.
type generation struct {
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*subscriber
	joined int
	closed atomic.Int32
}

type subscriber struct {
	g        *generation
	ch       chan broadcastItem
	done     chan struct{}
	once     sync.Once
	stopWait func() bool
}

func newGeneration(ctx context.Context, n, buffer int) *generation {
	// The pump outlives any single subscriber's context and stops when
	// every subscriber has gone.
	gctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g := &generation{ctx: gctx, cancel: cancel, subs: make([]*subscriber, n)}
	for i := range g.subs {
		g.subs[i] = &subscriber{
			g:    g,
			ch:   make(chan broadcastItem, buffer),
			done: make(chan struct{}),
		}
	}
	return g
}

func (g *generation) join(ctx context.Context) *subscriber {
	sub := g.subs[g.joined]
	g.joined++
	sub.stopWait = context.AfterFunc(ctx, sub.close)
	return sub
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		if int(s.g.closed.Add(1)) == len(s.g.subs) {
			s.g.cancel()
		}
	})
}

func (s *subscriber) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (g *generation) pump(input Operator, log *logger.Logger) {
	defer func() {
		g.cancel()
		for _, s := range g.subs {
			s.stopWait()
			close(s.ch)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			g.send(broadcastItem{err: &Error{Operator: input.Name(), Err: pipeline.NewPanicError(p)}})
		}
	}()

	it := input.Stream(g.ctx)
	defer it.Close()

	for {
		r, ok, err := safeNext(g.ctx, input.Name(), it)
		if err != nil {
			if g.ctx.Err() != nil {
				return
			}
			g.send(broadcastItem{err: err})
			return
		}
		if !ok {
			r = retrievable.Terminal
		}
		if !g.deliver(r) {
			log.Debug("all subscribers left, stopping broadcast",
				logger.Fields(logger.FieldOperator, input.Name()))
			return
		}
		if retrievable.IsTerminal(r) {
			return
		}
	}
}

// deliver hands r to every live subscriber. Copies are made before the
// original is sent, so the receiver of the original cannot race with the
// copying. It returns false when no subscriber is left.
func (g *generation) deliver(r *retrievable.Retrievable) bool {
	var live []*subscriber
	for _, s := range g.subs {
		if !s.isClosed() {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		_ = r.Release()
		return false
	}

	values := make([]*retrievable.Retrievable, len(live))
	values[0] = r
	for i := 1; i < len(live); i++ {
		values[i] = r.Copy()
	}

	delivered := 0
	for i, s := range live {
		if s.isClosed() {
			_ = values[i].Release()
			continue
		}
		select {
		case s.ch <- broadcastItem{r: values[i]}:
			delivered++
		case <-s.done:
			_ = values[i].Release()
		}
	}
	return delivered > 0 || retrievable.IsTerminal(r)
}

func (g *generation) send(item broadcastItem) {
	for _, s := range g.subs {
		select {
		case s.ch <- item:
		case <-s.done:
		}
	}
}

type subscription struct {
	sub      *subscriber
	finished bool
}

func (s *subscription) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	if s.finished {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	select {
	case item, open := <-s.sub.ch:
		if !open {
			// Closed without Terminal only happens after this
			// subscriber left.
			s.finished = true
			return nil, false, nil
		}
		if item.err != nil {
			s.finished = true
			return nil, false, item.err
		}
		if retrievable.IsTerminal(item.r) {
			s.finished = true
		}
		return item.r, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close leaves the broadcast. Buffered elements are released.
func (s *subscription) Close() error {
	s.sub.close()
	s.finished = true
	for {
		select {
		case item, open := <-s.sub.ch:
			if !open {
				return nil
			}
			if item.r != nil {
				_ = item.r.Release()
			}
		default:
			return nil
		}
	}
}
