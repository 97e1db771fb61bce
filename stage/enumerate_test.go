package stage

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func fixtureTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "b.html", "<p>b</p>")
	writeFile(t, dir, "a.png", "png")
	writeFile(t, dir, ".hidden.html", "hidden")
	writeFile(t, dir, "sub/c.json", "{}")
	writeFile(t, dir, "sub/deep/d.html", "<p>d</p>")
	return dir
}

func relPaths(t *testing.T, root string, rs []*retrievable.Retrievable) []string {
	t.Helper()
	var out []string
	for _, r := range rs {
		path, ok := sourcePath(r)
		if !ok {
			t.Fatalf("element %s has no source", r.ID())
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestFileSystemEnumerator_Walk(t *testing.T) {
	root := fixtureTree(t)
	tests := []struct {
		name   string
		params []any
		want   []string
	}{
		{"all", nil, []string{"a.png", "b.html", "sub/c.json", "sub/deep/d.html"}},
		{"depth zero", []any{"depth", 0}, []string{"a.png", "b.html"}},
		{"depth one", []any{"depth", "1"}, []string{"a.png", "b.html", "sub/c.json"}},
		{"types", []any{"types", []any{"HTML"}}, []string{"b.html", "sub/deep/d.html"}},
		{"hidden", []any{"hidden", true, "depth", 0}, []string{".hidden.html", "a.png", "b.html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(append([]any{"path", root}, tt.params...)...)
			op := build(t, newFileSystemEnumerator, testContext(t), nil, p)
			got := relPaths(t, root, collect(t, op))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("paths (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileSystemEnumerator_TypesAndStableIDs(t *testing.T) {
	root := fixtureTree(t)
	op := build(t, newFileSystemEnumerator, testContext(t), nil, params("path", root, "depth", 1))
	first := collect(t, op)
	second := collect(t, op)
	if len(first) != len(second) {
		t.Fatalf("runs returned %d and %d elements", len(first), len(second))
	}
	for i := range first {
		if first[i].ID() != second[i].ID() {
			t.Errorf("id of %d changed between runs", i)
		}
	}

	want := map[string]string{
		"a.png":      SourcePrefix + string(content.TypeImage),
		"b.html":     SourcePrefix + string(content.TypeText),
		"sub/c.json": SourcePrefix + string(content.TypeBlob),
	}
	for i, rel := range relPaths(t, root, first) {
		if first[i].Type != want[rel] {
			t.Errorf("%s: type = %q, want %q", rel, first[i].Type, want[rel])
		}
	}
	if m, _ := first[0].StringAttribute(retrievable.AttrMimeType); m != "image/png" {
		t.Errorf("mime of a.png = %q", m)
	}
}

func TestFileSystemEnumerator_SingleFile(t *testing.T) {
	root := fixtureTree(t)
	path := filepath.Join(root, "b.html")
	got := collect(t, build(t, newFileSystemEnumerator, testContext(t), nil, params("path", path)))
	if len(got) != 1 {
		t.Fatalf("got %d elements, want 1", len(got))
	}
	if src, _ := sourcePath(got[0]); src != path {
		t.Errorf("source = %q, want %q", src, path)
	}
}

func TestFileSystemEnumerator_Errors(t *testing.T) {
	_, err := newFileSystemEnumerator("fs", nil, testContext(t), params())
	if !stderrors.Is(err, dag.ErrMissingParameter) {
		t.Fatalf("missing path: error = %v, want ErrMissingParameter", err)
	}

	op := build(t, newFileSystemEnumerator, testContext(t), nil, params("path", filepath.Join(t.TempDir(), "missing")))
	if _, err := operator.Collect(context.Background(), op); err == nil {
		t.Fatal("expected error for a missing root")
	}
}

func TestListEnumerator(t *testing.T) {
	op := build(t, newListEnumerator, testContext(t), nil, params("items", []any{"hello world", "second"}))
	got := collect(t, op)
	all := make([]string, 0, len(got))
	for _, r := range got {
		if r.Type != SourcePrefix+string(content.TypeText) {
			t.Errorf("type = %q", r.Type)
		}
		ts, err := texts(r)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, ts...)
	}
	if diff := cmp.Diff([]string{"hello world", "second"}, all); diff != "" {
		t.Errorf("texts (-want +got):\n%s", diff)
	}

	// Every run creates fresh elements.
	again := collect(t, op)
	if again[0].ID() == got[0].ID() {
		t.Errorf("runs share element ids")
	}

	if _, err := newListEnumerator("list", nil, testContext(t), params()); !stderrors.Is(err, dag.ErrInvalidParameter) {
		t.Fatalf("empty items: error = %v, want ErrInvalidParameter", err)
	}
}
