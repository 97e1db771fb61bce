package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func testContext(t *testing.T) *dag.Context {
	t.Helper()
	stores := descriptor.NewProvider(descriptor.Config{Backend: descriptor.BackendMemory})
	t.Cleanup(func() { _ = stores.Close() })
	return &dag.Context{
		Pipeline: "test",
		Schema:   dag.DefaultSchema,
		Content:  content.InMemoryFactory{},
		Stores:   stores,
	}
}

func params(kv ...any) dag.Params {
	p := dag.Parameters{}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i].(string)] = kv[i+1]
	}
	return dag.NewParams(p, nil)
}

func source(items ...*retrievable.Retrievable) operator.Operator {
	return operator.NewSource("src", operator.SliceEnumerator(items...))
}

// build calls a factory with a single input.
func build(t *testing.T, fn dag.FactoryFunc, pc *dag.Context, input operator.Operator, p dag.Params) operator.Operator {
	t.Helper()
	var inputs []operator.Operator
	if input != nil {
		inputs = []operator.Operator{input}
	}
	op, err := fn("op", inputs, pc, p)
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	return op
}

func collect(t *testing.T, op operator.Operator) []*retrievable.Retrievable {
	t.Helper()
	rs, err := operator.Collect(context.Background(), op)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	return rs
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fileItem is an enumerated element pointing at path.
func fileItem(path string) *retrievable.Retrievable {
	return newFileRetrievable(path)
}

func textItem(text string) *retrievable.Retrievable {
	r := retrievable.New(SourcePrefix + string(content.TypeText))
	r.AddContent(content.NewText(text))
	return r
}
