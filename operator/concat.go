package operator

import (
	"context"

	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Concat interleaves N inputs without coalescing. Elements are yielded as
// they arrive; one Terminal follows once every input has ended.
type Concat struct {
	name   string
	inputs []Operator
}

// NewConcat creates an interleaving merge over inputs.
func NewConcat(name string, inputs []Operator) *Concat {
	return &Concat{name: name, inputs: inputs}
}

func (c *Concat) Name() string       { return c.name }
func (c *Concat) Kind() Kind         { return KindMerge }
func (c *Concat) Inputs() []Operator { return c.inputs }

func (c *Concat) Stream(ctx context.Context) Stream {
	parts := make([]*pipeline.Pipeline[*retrievable.Retrievable], len(c.inputs))
	for i, in := range c.inputs {
		parts[i] = pipeline.Filter(pipeline.TakeThrough(guarded(in), retrievable.IsTerminal), notTerminal)
	}
	merged := pipeline.Concat(pipeline.Merge(parts...), pipeline.Just(retrievable.Terminal))
	return Seal(merged.Iter(ctx))
}
