package retrievable

import (
	"github.com/google/uuid"
)

// Descriptor is a typed feature value extracted for one Retrievable.
type Descriptor struct {
	ID            uuid.UUID
	RetrievableID uuid.UUID
	Field         string
	Value         Value
}

// NewDescriptor creates a descriptor with a fresh id.
func NewDescriptor(retrievableID uuid.UUID, field string, value Value) *Descriptor {
	return &Descriptor{
		ID:            uuid.New(),
		RetrievableID: retrievableID,
		Field:         field,
		Value:         value,
	}
}

// Clone returns a deep copy with the same id.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Value != nil {
		cp.Value = d.Value.Clone()
	}
	return &cp
}
