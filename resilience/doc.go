// Package resilience guards calls to external feature services.
//
// Retry re-runs a call with exponential backoff while its error is retryable;
// CircuitBreaker fails fast after repeated failures. Guard composes both:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("clip"))
//	vec, err := resilience.Guard(ctx, cb, resilience.DefaultRetryConfig(), func(ctx context.Context) ([]float32, error) {
//	    return client.Embed(ctx, text)
//	})
package resilience
