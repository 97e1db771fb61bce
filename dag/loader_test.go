package dag

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/mediaflow/errors"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

const ingestYAML = `
name: ingest
schema: media
context:
  contentFactory: InMemoryContentFactory
  parameters: { lang: en }
enumerator: { name: ListEnumerator, parameters: { items: "a,b" } }
operators:
  decoder: { factory: TextDecoder }
operations:
  enumerator: { operator: enumerator }
  decode: { operator: decoder, inputs: [enumerator] }
  both: { inputs: [decode, enumerator], merge: UNION, conflict: last }
output: [decode]
`

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(ingestYAML), "fallback")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := &PipelineConfig{
		Name:   "ingest",
		Schema: "media",
		Context: ContextConfig{
			ContentFactory: "InMemoryContentFactory",
			Parameters:     Parameters{"lang": "en"},
		},
		Enumerator: &OperatorDefinition{Name: "ListEnumerator", Parameters: Parameters{"items": "a,b"}},
		Operators:  map[string]OperatorDefinition{"decoder": {Factory: "TextDecoder"}},
		Operations: map[string]OperationEdge{
			"enumerator": {Operator: "enumerator"},
			"decode":     {Operator: "decoder", Inputs: []string{"enumerator"}},
			"both":       {Inputs: []string{"decode", "enumerator"}, Merge: MergeUnion, Conflict: "last"},
		},
		Output: []string{"decode"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() (-want +got):\n%s", diff)
	}
}

func TestParse_JSONAndDefaultName(t *testing.T) {
	cfg, err := Parse([]byte(`{"operations": {"e": {"operator": "enumerator"}}}`), "from-file")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("name = %q, want from-file", cfg.Name)
	}
	if cfg.Operations["e"].Operator != "enumerator" {
		t.Errorf("operations = %+v", cfg.Operations)
	}

	if _, err := Parse([]byte("operations: [unclosed"), "broken"); !stderrors.Is(err, ErrInvalidPipeline) {
		t.Errorf("Parse(invalid) error = %v, want ErrInvalidPipeline", err)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ingest.yaml"), ingestYAML)
	writeFile(t, filepath.Join(dir, "nested", "query.json"), `{"operations": {"q": {"operator": "lookup"}}}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a pipeline")

	l := NewFileLoader(dir)
	cfg, err := l.Load("ingest")
	if err != nil {
		t.Fatalf("Load(ingest) error: %v", err)
	}
	if cfg.Schema != "media" {
		t.Errorf("schema = %q, want media", cfg.Schema)
	}
	q, err := l.Load("query")
	if err != nil {
		t.Fatalf("Load(query) error: %v", err)
	}
	if q.Name != "query" {
		t.Errorf("name = %q, want query", q.Name)
	}

	_, err = l.Load("absent")
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Errorf("Load(absent) error = %v, want NOT_FOUND", err)
	}

	names, err := l.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if diff := cmp.Diff([]string{"ingest", "query"}, names); diff != "" {
		t.Errorf("List() (-want +got):\n%s", diff)
	}
}

func TestFileLoader_Includes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.yaml"), `
schema: shared
enumerator: { name: ListEnumerator }
operators:
  decoder: { factory: TextDecoder }
  stats: { factory: TextStatsExtractor }
operations:
  enumerator: { operator: enumerator }
  decode: { operator: decoder, inputs: [enumerator] }
`)
	writeFile(t, filepath.Join(dir, "main.yaml"), `
includes: [base]
operators:
  decoder: { factory: BlobDecoder }
operations:
  stats: { operator: stats, inputs: [decode] }
`)
	cfg, err := NewFileLoader(dir).Load("main")
	if err != nil {
		t.Fatalf("Load(main) error: %v", err)
	}
	if cfg.Schema != "shared" {
		t.Errorf("schema = %q, want shared", cfg.Schema)
	}
	if got := cfg.Operators["decoder"].Factory; got != "BlobDecoder" {
		t.Errorf("decoder factory = %q, local definition must win", got)
	}
	if cfg.Enumerator == nil || cfg.Enumerator.Name != "ListEnumerator" {
		t.Errorf("enumerator = %+v, want included ListEnumerator", cfg.Enumerator)
	}
	want := []string{"decode", "enumerator", "stats"}
	var got []string
	for _, name := range want {
		if _, ok := cfg.Operations[name]; ok {
			got = append(got, name)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("operations (-want +got):\n%s", diff)
	}
}

func TestFileLoader_CircularInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "includes: [b]\noperations: { x: { operator: o } }\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "includes: [a]\noperations: { y: { operator: o } }\n")
	if _, err := NewFileLoader(dir).Load("a"); !stderrors.Is(err, ErrCycle) {
		t.Fatalf("Load(a) error = %v, want ErrCycle", err)
	}
}
