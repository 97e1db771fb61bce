package dag

import (
	stderrors "errors"
	"fmt"

	"github.com/kbukum/mediaflow/errors"
)

// Sentinel causes of configuration errors. Every error returned by the
// builder is an *errors.AppError with code INVALID_CONFIGURATION that
// wraps one of these.
var (
	ErrInvalidPipeline  = stderrors.New("invalid pipeline")
	ErrUnknownOperator  = stderrors.New("unknown operator")
	ErrUnknownInput     = stderrors.New("unknown input")
	ErrUnknownOutput    = stderrors.New("unknown output")
	ErrCycle            = stderrors.New("cycle in pipeline")
	ErrAmbiguousMerge   = stderrors.New("ambiguous merge")
	ErrRoleMismatch     = stderrors.New("operator role mismatch")
	ErrMissingParameter = stderrors.New("missing parameter")
	ErrInvalidParameter = stderrors.New("invalid parameter")
	ErrDuplicateFactory = stderrors.New("duplicate factory")
)

func configError(cause error, format string, args ...any) *errors.AppError {
	msg := fmt.Sprintf(format, args...)
	return errors.Configuration(msg).WithCause(cause)
}

// InvalidParameter reports a parameter value a factory cannot use.
func InvalidParameter(key string, err error) error {
	return configError(ErrInvalidParameter, "parameter %q: %v", key, err).WithDetail("parameter", key)
}
