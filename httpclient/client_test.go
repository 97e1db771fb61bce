package httpclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/mediaflow/resilience"
)

func fastRetry() *resilience.RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("X-Model") != "clip" ||
			!strings.HasPrefix(r.Header.Get("User-Agent"), "mediaflow/") {
			t.Errorf("headers = %v", r.Header)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": in["text"]})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Retry: fastRetry(), Headers: map[string]string{"X-Model": "clip"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	var out struct{ Echo string }
	if err := c.PostJSON(context.Background(), "/embed", map[string]string{"text": "hi"}, &out); err != nil {
		t.Fatalf("PostJSON() error: %v", err)
	}
	if out.Echo != "hi" || calls.Load() != 3 {
		t.Errorf("echo = %q after %d calls, want hi after 3", out.Echo, calls.Load())
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Retry: fastRetry()})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "x"})
	var he *Error
	if !stderrors.As(err, &he) || he.Code != ErrCodeValidation || he.StatusCode != 400 {
		t.Fatalf("Do() error = %v, want validation error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("%d calls, want 1", calls.Load())
	}
}

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := DefaultCircuitBreakerConfig("features")
	cb.MaxFailures = 2
	c, _ := New(Config{BaseURL: srv.URL, CircuitBreaker: cb})
	for range 2 {
		if _, err := c.Do(context.Background(), Request{Method: http.MethodGet}); !IsRetryable(err) {
			t.Fatalf("Do() error = %v, want retryable server error", err)
		}
	}
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet}); !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Do() error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("%d calls reached the server, want 2", calls.Load())
	}
}

func TestPostJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	var out map[string]any
	err := c.PostJSON(context.Background(), "/", nil, &out)
	var he *Error
	if !stderrors.As(err, &he) || he.Code != ErrCodeDecode {
		t.Fatalf("PostJSON() error = %v, want decode error", err)
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		code      ErrorCode
		retryable bool
	}{
		{status: 204, wantNil: true},
		{status: 404, code: ErrCodeValidation},
		{status: 429, code: ErrCodeRateLimit, retryable: true},
		{status: 502, code: ErrCodeServer, retryable: true},
	}
	for _, tt := range tests {
		got := ClassifyStatusCode(tt.status, nil)
		if tt.wantNil {
			if got != nil {
				t.Errorf("ClassifyStatusCode(%d) = %v, want nil", tt.status, got)
			}
			continue
		}
		if got == nil || got.Code != tt.code || got.Retryable != tt.retryable {
			t.Errorf("ClassifyStatusCode(%d) = %+v", tt.status, got)
		}
	}
}
