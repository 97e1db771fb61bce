// Package validation checks configuration and request input.
//
// Struct tags cover declarative documents such as pipeline definitions:
//
//	type Edge struct {
//	    Operator string   `yaml:"operator" validate:"omitempty,identifier"`
//	    Inputs   []string `yaml:"inputs" validate:"dive,required"`
//	}
//	err := validation.Validate(edge)
//
// The fluent Validator collects errors for values assembled in code:
//
//	err := validation.New().
//	    Min("scheduler.pool_size", cfg.PoolSize, 1).
//	    OneOf("store.backend", cfg.Backend, backends).
//	    Validate()
//
// Both report a *errors.AppError carrying per-field details.
package validation
