package stage

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func newDescriptorLookup(name string, inputs []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	field, err := params.Require("field")
	if err != nil {
		return nil, err
	}
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	store, err := pc.Store()
	if err != nil {
		return nil, err
	}
	lookup := func(ctx context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		it, err := store.GetAll(ctx, descriptor.Query{Field: field, RetrievableIDs: []uuid.UUID{r.ID()}})
		if err != nil {
			return nil, err
		}
		defer it.Close()
		for {
			d, ok, err := it.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return r, nil
			}
			if !hasDescriptor(r, d.ID) {
				r.AddDescriptor(d)
			}
		}
	}
	return operator.NewTransformer(name, operator.KindTransform, inputs[0], operator.OneToOne(lookup), opts...), nil
}

func hasDescriptor(r *retrievable.Retrievable, id uuid.UUID) bool {
	for _, d := range r.Descriptors {
		if d.ID == id {
			return true
		}
	}
	return false
}
