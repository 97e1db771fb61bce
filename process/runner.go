package process

import (
	"context"

	"github.com/kbukum/mediaflow/resilience"
)

// Runner executes commands through optional retries and a circuit
// breaker. Breaker state persists across calls, so a program that keeps
// crashing trips it.
type Runner struct {
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewRunner creates a runner. Nil configs disable the matching stage.
func NewRunner(retry *resilience.RetryConfig, breaker *resilience.CircuitBreakerConfig) *Runner {
	r := &Runner{retry: retry}
	if breaker != nil {
		r.breaker = resilience.NewCircuitBreaker(*breaker)
	}
	return r
}

// Run executes cmd. Commands with a Stdin reader are not retried since
// the reader is consumed by the first attempt.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	run := func(ctx context.Context) (*Result, error) { return Run(ctx, cmd) }
	retry := r.retry != nil && cmd.Stdin == nil
	switch {
	case retry && r.breaker != nil:
		return resilience.Guard(ctx, r.breaker, *r.retry, run)
	case retry:
		return resilience.Retry(ctx, *r.retry, run)
	case r.breaker != nil:
		var res *Result
		err := r.breaker.Execute(func() error {
			var err error
			res, err = run(ctx)
			return err
		})
		return res, err
	default:
		return run(ctx)
	}
}
