package descriptor

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/mediaflow/observability"
)

// Provider opens one store per schema on first use and keeps it open
// until Close.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	stores map[string]Store
	closed bool
}

// NewProvider creates a provider opening stores with cfg.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg, stores: make(map[string]Store)}
}

// Store returns the store for schema, opening it if needed.
func (p *Provider) Store(schema string) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if s, ok := p.stores[schema]; ok {
		return s, nil
	}
	s, err := Open(p.cfg, schema)
	if err != nil {
		return nil, err
	}
	p.stores[schema] = s
	return s, nil
}

// Schemas returns the schemas with an open store.
func (p *Provider) Schemas() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.stores))
	for name := range p.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every opened store.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for name, s := range p.stores {
		errs = append(errs, s.Close())
		delete(p.stores, name)
	}
	return stderrors.Join(errs...)
}

// CheckHealth reports the provider as down once closed.
func (p *Provider) CheckHealth(context.Context) observability.Health {
	h := observability.Health{
		Name:    "descriptor-store",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"backend": p.cfg.Backend, "schemas": strings.Join(p.Schemas(), ",")},
	}
	p.mu.Lock()
	if p.closed {
		h.Status, h.Message = observability.HealthStatusDown, "closed"
	}
	p.mu.Unlock()
	return h
}
