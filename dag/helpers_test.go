package dag

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

// testRegistry registers a source, a tagging transform and an n-ary merge.
// calls counts factory invocations.
func testRegistry(t *testing.T, calls *atomic.Int32) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister("test.Items", NewFactory(operator.KindSource,
		func(name string, _ []operator.Operator, _ *Context, p Params) (operator.Operator, error) {
			calls.Add(1)
			n, err := p.Int("count", 3)
			if err != nil {
				return nil, err
			}
			typ := p.String("type", "ITEM")
			items := make([]*retrievable.Retrievable, n)
			for i := range items {
				items[i] = retrievable.New(typ)
			}
			return operator.NewSource(name, operator.SliceEnumerator(items...)), nil
		}))
	reg.MustRegister("test.Tag", NewFactory(operator.KindTransform,
		func(name string, inputs []operator.Operator, _ *Context, p Params) (operator.Operator, error) {
			calls.Add(1)
			key, err := p.Require("key")
			if err != nil {
				return nil, err
			}
			return operator.NewTransformer(name, operator.KindTransform, inputs[0],
				operator.OneToOne(func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
					r.SetAttribute(key, name)
					return r, nil
				})), nil
		}))
	reg.MustRegister("test.Merge", NewFactory(operator.KindMerge,
		func(name string, inputs []operator.Operator, _ *Context, _ Params) (operator.Operator, error) {
			calls.Add(1)
			return operator.NewConcat(name, inputs), nil
		}))
	return reg
}

func newTestBuilder(t *testing.T, calls *atomic.Int32, opts ...BuilderOption) *Builder {
	t.Helper()
	return NewBuilder(testRegistry(t, calls), Services{}, opts...)
}

// collectAll drains every output concurrently, as broadcasts require.
func collectAll(t *testing.T, p *Pipeline) map[string][]*retrievable.Retrievable {
	t.Helper()
	ctx := context.Background()
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		out  = make(map[string][]*retrievable.Retrievable)
		errs []error
	)
	for _, o := range p.Outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			rs, err := operator.Collect(ctx, o.Operator)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			out[o.Name] = rs
		}(o)
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("draining outputs: %v", errs)
	}
	return out
}

func tag(key string) OperatorDefinition {
	return OperatorDefinition{Factory: "test.Tag", Parameters: Parameters{"key": key}}
}

func items() *OperatorDefinition {
	return &OperatorDefinition{Name: "Items"}
}
