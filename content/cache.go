package content

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/logger"
)

var (
	// ErrCacheClosed is returned by Put after Close.
	ErrCacheClosed = stderrors.New("content: cache closed")
	// ErrReleased is returned when releasing content that has no holders left.
	ErrReleased = stderrors.New("content: released more often than retained")
)

// Cache spills large payloads to files under one private directory. Each
// file lives until the last holder of its Cached handle releases it, or the
// cache is closed.
type Cache struct {
	dir string
	log *logger.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	closed  bool
}

type cacheEntry struct {
	path string
	size int64
	refs int
}

// NewCache creates a cache in a fresh directory below root. An empty root
// uses the system temp directory.
func NewCache(root string) (*Cache, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("content: creating cache root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "mediaflow-cache-")
	if err != nil {
		return nil, fmt.Errorf("content: creating cache dir: %w", err)
	}
	return &Cache{
		dir:     dir,
		log:     logger.Get("content-cache"),
		entries: make(map[uuid.UUID]*cacheEntry),
	}, nil
}

// Dir returns the directory holding the cached files.
func (c *Cache) Dir() string { return c.dir }

// Put copies r into a new cache file. The returned handle has one holder.
func (c *Cache) Put(typ Type, mime string, r io.Reader) (*Cached, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrCacheClosed
	}

	f, err := os.CreateTemp(c.dir, "content-*")
	if err != nil {
		return nil, fmt.Errorf("content: creating cache file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("content: writing cache file: %w", err)
	}

	id := uuid.New()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = os.Remove(f.Name())
		return nil, ErrCacheClosed
	}
	c.entries[id] = &cacheEntry{path: f.Name(), size: size, refs: 1}
	return &Cached{id: id, typ: typ, mime: mime, cache: c}, nil
}

// Live returns the number of files still held.
func (c *Cache) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close removes every cached file regardless of holders.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if n := len(c.entries); n > 0 {
		c.log.Debug("closing cache with live entries", logger.Fields(logger.FieldCount, n))
	}
	c.entries = nil
	return os.RemoveAll(c.dir)
}

func (c *Cache) retain(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.refs++
	}
}

func (c *Cache) release(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	e, ok := c.entries[id]
	if !ok {
		return ErrReleased
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(c.entries, id)
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("content: removing cache file: %w", err)
	}
	return nil
}

func (c *Cache) lookup(id uuid.UUID) (cacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return cacheEntry{}, ErrReleased
	}
	return *e, nil
}

// Cached is file-backed content owned by a Cache.
type Cached struct {
	id    uuid.UUID
	typ   Type
	mime  string
	cache *Cache
}

func (c *Cached) ID() uuid.UUID    { return c.id }
func (c *Cached) Type() Type       { return c.typ }
func (c *Cached) MimeType() string { return c.mime }

// Retain adds a holder.
func (c *Cached) Retain() { c.cache.retain(c.id) }

// Release drops a holder and deletes the file when none remain.
func (c *Cached) Release() error { return c.cache.release(c.id) }

// Size returns the payload size in bytes.
func (c *Cached) Size() (int64, error) {
	e, err := c.cache.lookup(c.id)
	return e.size, err
}

// Open opens the backing file. It fails once the content has been freed.
func (c *Cached) Open() (io.ReadCloser, error) {
	e, err := c.cache.lookup(c.id)
	if err != nil {
		return nil, err
	}
	return os.Open(e.path)
}

// Bytes reads the whole payload.
func (c *Cached) Bytes() ([]byte, error) {
	rc, err := c.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
