package descriptor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Memory keeps descriptors in process memory. Stored descriptors are
// cloned on the way in and out.
type Memory struct {
	mu     sync.RWMutex
	fields map[string]*memoryField
	closed bool
}

type memoryField struct {
	byID  map[uuid.UUID]*retrievable.Descriptor
	order []uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{fields: make(map[string]*memoryField)}
}

func (m *Memory) field(name string) *memoryField {
	f, ok := m.fields[name]
	if !ok {
		f = &memoryField{byID: make(map[uuid.UUID]*retrievable.Descriptor)}
		m.fields[name] = f
	}
	return f
}

func (m *Memory) Get(_ context.Context, field string, id uuid.UUID) (*retrievable.Descriptor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	f, ok := m.fields[field]
	if !ok {
		return nil, false, nil
	}
	d, ok := f.byID[id]
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}

func (m *Memory) GetAll(ctx context.Context, q Query) (pipeline.Iterator[*retrievable.Descriptor], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var snapshot []*retrievable.Descriptor
	if f, ok := m.fields[q.Field]; ok {
		snapshot = make([]*retrievable.Descriptor, 0, len(f.order))
		for _, id := range f.order {
			snapshot = append(snapshot, f.byID[id].Clone())
		}
	}
	p := pipeline.Filter(pipeline.FromSlice(snapshot), q.Match)
	return limit(p, q).Iter(ctx), nil
}

func (m *Memory) Count(_ context.Context, field string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	if f, ok := m.fields[field]; ok {
		return len(f.order), nil
	}
	return 0, nil
}

func (m *Memory) Add(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	f := m.field(d.Field)
	if _, exists := f.byID[d.ID]; exists {
		return false, nil
	}
	f.byID[d.ID] = d.Clone()
	f.order = append(f.order, d.ID)
	return true, nil
}

func (m *Memory) AddAll(ctx context.Context, ds []*retrievable.Descriptor) (bool, error) {
	return addAll(ctx, ds, m.Add)
}

func (m *Memory) Update(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	f, ok := m.fields[d.Field]
	if !ok {
		return false, nil
	}
	if _, exists := f.byID[d.ID]; !exists {
		return false, nil
	}
	f.byID[d.ID] = d.Clone()
	return true, nil
}

func (m *Memory) Delete(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	f, ok := m.fields[d.Field]
	if !ok {
		return false, nil
	}
	if _, exists := f.byID[d.ID]; !exists {
		return false, nil
	}
	delete(f.byID, d.ID)
	for i, id := range f.order {
		if id == d.ID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.fields = nil
	return nil
}

// Blackhole accepts every write and stores nothing.
type Blackhole struct{}

func (Blackhole) Get(context.Context, string, uuid.UUID) (*retrievable.Descriptor, bool, error) {
	return nil, false, nil
}

func (Blackhole) GetAll(ctx context.Context, _ Query) (pipeline.Iterator[*retrievable.Descriptor], error) {
	return pipeline.Just[*retrievable.Descriptor]().Iter(ctx), nil
}

func (Blackhole) Count(context.Context, string) (int, error) { return 0, nil }

func (Blackhole) Add(context.Context, *retrievable.Descriptor) (bool, error)      { return true, nil }
func (Blackhole) AddAll(context.Context, []*retrievable.Descriptor) (bool, error) { return true, nil }
func (Blackhole) Update(context.Context, *retrievable.Descriptor) (bool, error)   { return true, nil }
func (Blackhole) Delete(context.Context, *retrievable.Descriptor) (bool, error)   { return true, nil }
func (Blackhole) Close() error                                                    { return nil }
