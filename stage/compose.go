package stage

import (
	"github.com/kbukum/mediaflow/aggregate"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
)

func newTypeFilter(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	typ, err := params.Require("type")
	if err != nil {
		return nil, err
	}
	return operator.NewTypeFilter(name, inputs[0], typ), nil
}

func newDistinctFilter(name string, inputs []operator.Operator, _ *dag.Context, _ dag.Params) (operator.Operator, error) {
	return operator.NewDistinct(name, inputs[0]), nil
}

func method(params dag.Params) (aggregate.Method, error) {
	m, err := aggregate.ParseMethod(params.String("method", string(aggregate.First)))
	if err != nil {
		return "", dag.InvalidParameter("method", err)
	}
	return m, nil
}

func newContentAggregator(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	m, err := method(params)
	if err != nil {
		return nil, err
	}
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	return aggregate.NewContentAggregator(name, inputs[0], m, opts...)
}

func newDescriptorAggregator(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	m, err := method(params)
	if err != nil {
		return nil, err
	}
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	return aggregate.NewDescriptorAggregator(name, inputs[0], m, opts...), nil
}

func newCombine(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	policy, err := operator.ParseConflictPolicy(params.String("conflict", ""))
	if err != nil {
		return nil, dag.InvalidParameter("conflict", err)
	}
	return operator.NewCombine(name, inputs, operator.WithConflictPolicy(policy)), nil
}

func newConcat(name string, inputs []operator.Operator, _ *dag.Context, _ dag.Params) (operator.Operator, error) {
	return operator.NewConcat(name, inputs), nil
}
