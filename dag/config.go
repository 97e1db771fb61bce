package dag

// MergePolicy selects how an operation with several inputs joins them.
type MergePolicy string

const (
	MergeNone   MergePolicy = "NONE"
	MergeUnion  MergePolicy = "UNION"
	MergeConcat MergePolicy = "CONCAT"
)

// EnumeratorKey is the reserved operator name under which the pipeline's
// enumerator definition is registered.
const EnumeratorKey = "enumerator"

// PipelineConfig is the declarative description of one pipeline.
type PipelineConfig struct {
	Name   string `yaml:"name" json:"name" validate:"required,identifier"`
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty" validate:"omitempty,identifier"`
	// Includes names other pipelines whose operators and operations are
	// merged into this one. Local entries win.
	Includes   []string                      `yaml:"includes,omitempty" json:"includes,omitempty" validate:"dive,identifier"`
	Context    ContextConfig                 `yaml:"context,omitempty" json:"context,omitempty"`
	Enumerator *OperatorDefinition           `yaml:"enumerator,omitempty" json:"enumerator,omitempty"`
	Operators  map[string]OperatorDefinition `yaml:"operators,omitempty" json:"operators,omitempty" validate:"dive,keys,identifier,endkeys"`
	Operations map[string]OperationEdge      `yaml:"operations" json:"operations" validate:"required,min=1,dive,keys,identifier,endkeys"`
	// Output names operations whose streams are drained. Operations no
	// other operation consumes are drained as well.
	Output []string `yaml:"output,omitempty" json:"output,omitempty"`
}

// ContextConfig carries pipeline-wide settings handed to every factory.
type ContextConfig struct {
	ContentFactory string     `yaml:"contentFactory,omitempty" json:"contentFactory,omitempty"`
	ResolverName   string     `yaml:"resolverName,omitempty" json:"resolverName,omitempty"`
	Parameters     Parameters `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// OperatorDefinition names a factory and its parameters. The factory can
// be given as either factory or name.
type OperatorDefinition struct {
	Factory    string     `yaml:"factory,omitempty" json:"factory,omitempty"`
	Name       string     `yaml:"name,omitempty" json:"name,omitempty"`
	Parameters Parameters `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// FactoryName returns the factory this definition refers to.
func (d OperatorDefinition) FactoryName() string {
	if d.Factory != "" {
		return d.Factory
	}
	return d.Name
}

// OperationEdge applies an operator to the outputs of its inputs. An edge
// without an operator is a pure merge of its inputs.
type OperationEdge struct {
	Operator string      `yaml:"operator,omitempty" json:"operator,omitempty"`
	Inputs   []string    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Merge    MergePolicy `yaml:"merge,omitempty" json:"merge,omitempty" validate:"omitempty,oneof=NONE UNION CONCAT"`
	// Conflict is the descriptor conflict policy of a UNION merge.
	Conflict string `yaml:"conflict,omitempty" json:"conflict,omitempty" validate:"omitempty,oneof=first last all"`
}

// operators returns the operator definitions with the enumerator added.
func (c *PipelineConfig) operators() map[string]OperatorDefinition {
	defs := make(map[string]OperatorDefinition, len(c.Operators)+1)
	for k, v := range c.Operators {
		defs[k] = v
	}
	if c.Enumerator != nil {
		defs[EnumeratorKey] = *c.Enumerator
	}
	return defs
}
