package dag

import (
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/mediaflow/operator"
)

// Factory creates operators of one kind. Source factories receive no
// inputs, merge factories receive all inputs of their operation and every
// other factory receives exactly one.
type Factory interface {
	Kind() operator.Kind
	New(name string, inputs []operator.Operator, ctx *Context, params Params) (operator.Operator, error)
}

// FactoryFunc is the constructor wrapped by NewFactory.
type FactoryFunc func(name string, inputs []operator.Operator, ctx *Context, params Params) (operator.Operator, error)

// NewFactory creates a factory of kind from fn.
func NewFactory(kind operator.Kind, fn FactoryFunc) Factory {
	return funcFactory{kind: kind, fn: fn}
}

type funcFactory struct {
	kind operator.Kind
	fn   FactoryFunc
}

func (f funcFactory) Kind() operator.Kind { return f.kind }

func (f funcFactory) New(name string, inputs []operator.Operator, ctx *Context, params Params) (operator.Operator, error) {
	return f.fn(name, inputs, ctx, params)
}

// FactoryInfo describes a registered factory.
type FactoryInfo struct {
	Name       string        `json:"name"`
	SimpleName string        `json:"simpleName"`
	Kind       operator.Kind `json:"kind"`
}

// Registry maps factory names to factories. Factories are registered under
// a qualified name such as "stage.TextDecoder" and can be looked up by it
// or by the simple name after the last dot.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	simple    map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		simple:    make(map[string]string),
	}
}

// SimpleName returns the part of name after the last dot.
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Register adds a factory. It fails when the qualified name or its simple
// name is already taken.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	simple := SimpleName(name)
	if _, exists := r.factories[name]; exists {
		return configError(ErrDuplicateFactory, "factory %q already registered", name).WithDetail("factory", name)
	}
	if owner, exists := r.simple[simple]; exists {
		return configError(ErrDuplicateFactory, "factory %q clashes with %q", name, owner).WithDetail("factory", name)
	}
	r.factories[name] = f
	r.simple[simple] = name
	return nil
}

// MustRegister is Register for start-up code; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup finds a factory by qualified or simple name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[name]; ok {
		return f, true
	}
	if q, ok := r.simple[name]; ok {
		return r.factories[q], true
	}
	return nil, false
}

// List returns sorted qualified names of all registered factories.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every registered factory, sorted by name.
func (r *Registry) Describe() []FactoryInfo {
	names := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FactoryInfo, len(names))
	for i, name := range names {
		out[i] = FactoryInfo{Name: name, SimpleName: SimpleName(name), Kind: r.factories[name].Kind()}
	}
	return out
}
