package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/process"
	"github.com/kbukum/mediaflow/resilience"
	"github.com/kbukum/mediaflow/retrievable"
)

// pathPlaceholder in an argument is replaced by the element's source file.
const pathPlaceholder = "{path}"

// newCommandFeatureExtractor runs an external program per element and
// reads a feature vector from its stdout. Arguments containing {path}
// receive the source file; otherwise the element's text goes to stdin.
func newCommandFeatureExtractor(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	binary, err := params.Require("command")
	if err != nil {
		return nil, err
	}
	args := params.List("args")
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	timeout, err := params.Duration("timeout", 30*time.Second)
	if err != nil {
		return nil, err
	}
	maxOutput, err := params.Size("maxOutput", 1<<20)
	if err != nil {
		return nil, err
	}
	failures, err := params.Int("breakerFailures", 5)
	if err != nil {
		return nil, err
	}
	field := params.String("field", "feature")

	breaker := resilience.DefaultCircuitBreakerConfig(name)
	breaker.MaxFailures = failures
	runner := process.NewRunner(nil, &breaker)

	usesPath := false
	for _, a := range args {
		if strings.Contains(a, pathPlaceholder) {
			usesPath = true
			break
		}
	}

	extract := func(ctx context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		cmd := process.Command{Binary: binary, Args: args, MaxOutput: maxOutput}
		if usesPath {
			path, ok := sourcePath(r)
			if !ok {
				return r, nil
			}
			cmd.Args = make([]string, len(args))
			for i, a := range args {
				cmd.Args[i] = strings.ReplaceAll(a, pathPlaceholder, path)
			}
		} else {
			texts, err := texts(r)
			if err != nil || len(texts) == 0 {
				return r, err
			}
			cmd.Stdin = strings.NewReader(joinTexts(texts))
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := runner.Run(ctx, cmd)
		if err != nil {
			return nil, err
		}
		var resp featureResponse
		if err := json.Unmarshal(res.Stdout, &resp); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", binary, err)
		}
		if len(resp.Vector) == 0 {
			return nil, fmt.Errorf("%s returned an empty vector", binary)
		}
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field, retrievable.FloatVector(resp.Vector)))
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindExtract, inputs[0], operator.OneToOne(extract), opts...), nil
}
