// Package httpclient is the HTTP client used to call external feature
// services.
//
// Requests carry JSON bodies; non-2xx responses become typed *Error values
// whose Retryable flag drives the retry loop. A client can be guarded by a
// circuit breaker shared across all of its requests.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:        "http://localhost:9000",
//	    Retry:          httpclient.DefaultRetryConfig(),
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("clip"),
//	})
//	var out struct{ Vector []float32 }
//	err = client.PostJSON(ctx, "/embed", map[string]string{"text": s}, &out)
package httpclient
