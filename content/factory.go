package content

import (
	"fmt"
	"io"
)

// Factory names accepted by NewFactory.
const (
	InMemoryFactoryName = "InMemoryContentFactory"
	CachedFactoryName   = "CachedContentFactory"
)

// Factory creates content for decoders.
type Factory interface {
	NewText(text string) (Content, error)
	NewBinary(typ Type, mime string, r io.Reader) (Content, error)
}

// InMemoryFactory keeps every payload in memory.
type InMemoryFactory struct{}

func (InMemoryFactory) NewText(text string) (Content, error) {
	return NewText(text), nil
}

func (InMemoryFactory) NewBinary(typ Type, mime string, r io.Reader) (Content, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("content: reading payload: %w", err)
	}
	return NewBlob(typ, mime, data), nil
}

// CachedFactory spills binary payloads to a Cache. Text stays in memory.
type CachedFactory struct {
	Cache *Cache
}

func (f CachedFactory) NewText(text string) (Content, error) {
	return NewText(text), nil
}

func (f CachedFactory) NewBinary(typ Type, mime string, r io.Reader) (Content, error) {
	return f.Cache.Put(typ, mime, r)
}

// NewFactory resolves a factory by name. An empty name selects the
// in-memory factory; the cached factory requires a cache.
func NewFactory(name string, cache *Cache) (Factory, error) {
	switch name {
	case "", InMemoryFactoryName:
		return InMemoryFactory{}, nil
	case CachedFactoryName:
		if cache == nil {
			return nil, fmt.Errorf("content: %s needs a cache", name)
		}
		return CachedFactory{Cache: cache}, nil
	default:
		return nil, fmt.Errorf("content: unknown content factory %q", name)
	}
}
