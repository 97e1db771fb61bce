// Package retrievable defines the unit of data that flows through a pipeline.
package retrievable

import (
	"maps"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/content"
)

// Well-known attribute keys.
const (
	AttrSource   = "source"
	AttrMimeType = "mime"
	AttrScore    = "score"
)

// Relationship links a Retrievable to another one, either by id or by a
// direct reference.
type Relationship struct {
	Predicate string
	ObjectID  uuid.UUID
	Object    *Retrievable
}

// Retrievable is one item in a pipeline: its content, the descriptors
// extracted from it, transient attributes and relationships to others.
// The id never changes; everything else is mutated by operators.
type Retrievable struct {
	id uuid.UUID

	Type          string
	Content       []content.Content
	Descriptors   []*Descriptor
	Attributes    map[string]any
	Relationships []Relationship
}

// New creates a Retrievable with a fresh id.
func New(typ string) *Retrievable {
	return NewWithID(uuid.New(), typ)
}

// NewWithID creates a Retrievable with a known id, e.g. when reloading
// descriptors for an existing item.
func NewWithID(id uuid.UUID, typ string) *Retrievable {
	return &Retrievable{id: id, Type: typ}
}

// ID returns the identifier.
func (r *Retrievable) ID() uuid.UUID { return r.id }

// AddContent appends c.
func (r *Retrievable) AddContent(c content.Content) {
	r.Content = append(r.Content, c)
}

// AddDescriptor appends d.
func (r *Retrievable) AddDescriptor(d *Descriptor) {
	r.Descriptors = append(r.Descriptors, d)
}

// Descriptor returns the first descriptor for field.
func (r *Retrievable) Descriptor(field string) (*Descriptor, bool) {
	for _, d := range r.Descriptors {
		if d.Field == field {
			return d, true
		}
	}
	return nil, false
}

// SetAttribute sets an attribute.
func (r *Retrievable) SetAttribute(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}

// Attribute returns an attribute.
func (r *Retrievable) Attribute(key string) (any, bool) {
	v, ok := r.Attributes[key]
	return v, ok
}

// StringAttribute returns an attribute if it is a string.
func (r *Retrievable) StringAttribute(key string) (string, bool) {
	v, ok := r.Attributes[key].(string)
	return v, ok
}

// AddRelationship records a relationship to another Retrievable.
func (r *Retrievable) AddRelationship(predicate string, object *Retrievable) {
	r.Relationships = append(r.Relationships, Relationship{
		Predicate: predicate,
		ObjectID:  object.ID(),
		Object:    object,
	})
}

// Copy returns an independent copy with the same id. Descriptors are
// cloned, content handles are shared and retained. Related objects are
// shared by reference.
func (r *Retrievable) Copy() *Retrievable {
	if r == nil || r == Terminal {
		return r
	}
	cp := &Retrievable{id: r.id, Type: r.Type}
	if r.Content != nil {
		cp.Content = make([]content.Content, len(r.Content))
		for i, c := range r.Content {
			content.Retain(c)
			cp.Content[i] = c
		}
	}
	if r.Descriptors != nil {
		cp.Descriptors = make([]*Descriptor, len(r.Descriptors))
		for i, d := range r.Descriptors {
			cp.Descriptors[i] = d.Clone()
		}
	}
	if r.Attributes != nil {
		cp.Attributes = maps.Clone(r.Attributes)
	}
	if r.Relationships != nil {
		cp.Relationships = append([]Relationship(nil), r.Relationships...)
	}
	return cp
}

// Release drops this Retrievable's hold on its shared content. The first
// error is returned but every element is released.
func (r *Retrievable) Release() error {
	if r == nil || r == Terminal {
		return nil
	}
	var first error
	for _, c := range r.Content {
		if err := content.Release(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Terminal marks the end of a stream. It is compared by identity and is
// never a real element.
var Terminal = &Retrievable{Type: "TERMINAL"}

// IsTerminal reports whether r is the end-of-stream marker.
func IsTerminal(r *Retrievable) bool { return r == Terminal }
