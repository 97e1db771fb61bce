package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/httpclient"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

// featureRequest is the body posted to a feature service.
type featureRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// featureResponse accepts {"vector": [...]} or a bare array.
type featureResponse struct {
	Vector []float32 `json:"vector"`
}

func (f *featureResponse) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return json.Unmarshal(data, &f.Vector)
	}
	type plain featureResponse
	return json.Unmarshal(data, (*plain)(f))
}

func newHTTPFeatureExtractor(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	url, err := params.Require("url")
	if err != nil {
		return nil, err
	}
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	cfg, err := featureClientConfig(name, params)
	if err != nil {
		return nil, err
	}
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, dag.InvalidParameter("timeout", err)
	}
	field := params.String("field", "feature")

	extract := func(ctx context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		texts, err := texts(r)
		if err != nil || len(texts) == 0 {
			return r, err
		}
		var resp featureResponse
		req := featureRequest{ID: r.ID().String(), Text: joinTexts(texts)}
		if err := client.PostJSON(ctx, url, req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Vector) == 0 {
			return nil, fmt.Errorf("feature service returned an empty vector")
		}
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field, retrievable.FloatVector(resp.Vector)))
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindExtract, inputs[0], operator.OneToOne(extract), opts...), nil
}

func featureClientConfig(name string, params dag.Params) (httpclient.Config, error) {
	timeout, err := params.Duration("timeout", 10*time.Second)
	if err != nil {
		return httpclient.Config{}, err
	}
	retries, err := params.Int("retries", 3)
	if err != nil {
		return httpclient.Config{}, err
	}
	failures, err := params.Int("breakerFailures", 5)
	if err != nil {
		return httpclient.Config{}, err
	}
	cooldown, err := params.Duration("breakerTimeout", 30*time.Second)
	if err != nil {
		return httpclient.Config{}, err
	}
	backoff, err := params.Duration("backoff", 100*time.Millisecond)
	if err != nil {
		return httpclient.Config{}, err
	}

	retry := httpclient.DefaultRetryConfig()
	retry.MaxAttempts = retries + 1
	retry.InitialBackoff = backoff
	breaker := httpclient.DefaultCircuitBreakerConfig(name)
	breaker.MaxFailures = failures
	breaker.Timeout = cooldown

	return httpclient.Config{
		Timeout:        timeout,
		Retry:          retry,
		CircuitBreaker: breaker,
	}, nil
}

func joinTexts(texts []string) string {
	if len(texts) == 1 {
		return texts[0]
	}
	var b bytes.Buffer
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t)
	}
	return b.String()
}
