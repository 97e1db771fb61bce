// Package descriptor persists and loads the descriptors extracted for
// retrievables.
//
// Stores are scoped to one schema. Backends are selected by name with
// Open: "memory", "blackhole", "jsonl" and "badger".
package descriptor

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Backend names.
const (
	BackendMemory    = "memory"
	BackendBlackhole = "blackhole"
	BackendJSONL     = "jsonl"
	BackendBadger    = "badger"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = stderrors.New("descriptor: store closed")

// Query selects descriptors of one field.
type Query struct {
	Field string
	// RetrievableIDs restricts results to these retrievables when set.
	RetrievableIDs []uuid.UUID
	// Limit caps the number of results when positive.
	Limit int
}

// Match reports whether d satisfies the query's filters.
func (q Query) Match(d *retrievable.Descriptor) bool {
	if d.Field != q.Field {
		return false
	}
	return len(q.RetrievableIDs) == 0 || slices.Contains(q.RetrievableIDs, d.RetrievableID)
}

// Reader loads descriptors.
type Reader interface {
	// Get returns the descriptor with the given id in field.
	Get(ctx context.Context, field string, id uuid.UUID) (*retrievable.Descriptor, bool, error)
	// GetAll streams every descriptor matching q. The caller closes the iterator.
	GetAll(ctx context.Context, q Query) (pipeline.Iterator[*retrievable.Descriptor], error)
	Count(ctx context.Context, field string) (int, error)
}

// Writer stores descriptors. Each method reports whether the store changed.
type Writer interface {
	// Add stores d unless a descriptor with its id already exists.
	Add(ctx context.Context, d *retrievable.Descriptor) (bool, error)
	// AddAll stores ds and reports whether every one was new.
	AddAll(ctx context.Context, ds []*retrievable.Descriptor) (bool, error)
	// Update replaces an existing descriptor.
	Update(ctx context.Context, d *retrievable.Descriptor) (bool, error)
	// Delete removes an existing descriptor.
	Delete(ctx context.Context, d *retrievable.Descriptor) (bool, error)
}

// Store is a descriptor store for one schema.
type Store interface {
	Reader
	Writer
	Close() error
}

// Config selects a backend. Path is the root directory of file-backed
// backends; each schema gets a subdirectory.
type Config struct {
	Backend string
	Path    string
}

// Open opens the store for schema.
func Open(cfg Config, schema string) (Store, error) {
	dir := filepath.Join(cfg.Path, schema)
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendBlackhole:
		return Blackhole{}, nil
	case BackendJSONL:
		return OpenJSONL(dir)
	case BackendBadger:
		return OpenBadger(dir)
	default:
		return nil, errors.Configuration(fmt.Sprintf("unknown descriptor store backend %q", cfg.Backend)).
			WithDetail("backend", cfg.Backend)
	}
}

// limit applies q.Limit to a descriptor pipeline.
func limit(p *pipeline.Pipeline[*retrievable.Descriptor], q Query) *pipeline.Pipeline[*retrievable.Descriptor] {
	if q.Limit <= 0 {
		return p
	}
	n := 0
	return pipeline.TakeThrough(p, func(*retrievable.Descriptor) bool {
		n++
		return n >= q.Limit
	})
}

// addAll adds ds one by one through add.
func addAll(ctx context.Context, ds []*retrievable.Descriptor, add func(context.Context, *retrievable.Descriptor) (bool, error)) (bool, error) {
	all := true
	for _, d := range ds {
		ok, err := add(ctx, d)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	return all, nil
}
