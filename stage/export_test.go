package stage

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/resolver"
	"github.com/kbukum/mediaflow/retrievable"
)

func described(fields ...string) *retrievable.Retrievable {
	r := retrievable.New("ITEM")
	for _, f := range fields {
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), f, retrievable.Long(1)))
	}
	return r
}

func TestDescriptorPersister(t *testing.T) {
	tests := []struct {
		name   string
		params dag.Params
		wantA  int
		wantB  int
	}{
		{name: "per element", params: params(), wantA: 3, wantB: 3},
		{name: "batched", params: params("batch", 2, "batchTimeout", "10ms"), wantA: 3, wantB: 3},
		{name: "field filter", params: params("fields", "a"), wantA: 3, wantB: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := testContext(t)
			in := []*retrievable.Retrievable{described("a", "b"), described("a", "b"), described("a", "b")}
			got := collect(t, build(t, newDescriptorPersister, pc, source(in...), tt.params))
			if len(got) != len(in) {
				t.Fatalf("forwarded %d elements, want %d", len(got), len(in))
			}
			for i := range in {
				if got[i].ID() != in[i].ID() {
					t.Errorf("element %d out of order", i)
				}
			}
			store, err := pc.Store()
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()
			if n, _ := store.Count(ctx, "a"); n != tt.wantA {
				t.Errorf("count(a) = %d, want %d", n, tt.wantA)
			}
			if n, _ := store.Count(ctx, "b"); n != tt.wantB {
				t.Errorf("count(b) = %d, want %d", n, tt.wantB)
			}
		})
	}
}

func TestDescriptorPersister_StorageErrorEndsStream(t *testing.T) {
	pc := testContext(t)
	op := build(t, newDescriptorPersister, pc, source(described("a")), params())
	store, err := pc.Store()
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	_, err = operator.Collect(context.Background(), op)
	var opErr *operator.Error
	if !stderrors.As(err, &opErr) || opErr.Operator != "op" {
		t.Fatalf("error = %v, want *operator.Error from op", err)
	}
	if !stderrors.Is(err, descriptor.ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeStorage || !appErr.Retryable {
		t.Errorf("error = %v, want a retryable STORAGE_ERROR", err)
	}
}

func TestDescriptorPersister_NoStorage(t *testing.T) {
	pc := testContext(t)
	pc.Stores = nil
	if _, err := newDescriptorPersister("p", []operator.Operator{source()}, pc, params()); !stderrors.Is(err, dag.ErrInvalidPipeline) {
		t.Fatalf("error = %v, want ErrInvalidPipeline", err)
	}
}

func TestTextExporter(t *testing.T) {
	disk, err := resolver.NewDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pc := testContext(t)
	pc.Resolver = disk

	item := textItem("exported text")
	got := collect(t, build(t, newTextExporter, pc, source(item, retrievable.New("ITEM")), params()))
	if len(got) != 2 {
		t.Fatalf("got %d elements, want 2", len(got))
	}
	url, ok := got[0].StringAttribute(AttrExportURL)
	if !ok || !strings.HasPrefix(url, "file://") {
		t.Fatalf("export url = %q", url)
	}
	target, err := disk.Resolve(item.Content[0].ID(), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if target.URL() != url {
		t.Errorf("url = %q, want %q", url, target.URL())
	}
	rc, err := target.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data := new(strings.Builder)
	if _, err := io.Copy(data, rc); err != nil {
		t.Fatal(err)
	}
	if data.String() != "exported text" {
		t.Errorf("file = %q", data.String())
	}
	if _, ok := got[1].StringAttribute(AttrExportURL); ok {
		t.Errorf("element without text has an export url")
	}
}

func TestTextExporter_NeedsResolver(t *testing.T) {
	_, err := newTextExporter("x", []operator.Operator{source()}, testContext(t), params())
	if !stderrors.Is(err, dag.ErrInvalidParameter) {
		t.Fatalf("error = %v, want ErrInvalidParameter", err)
	}
}

func TestDescriptorLookup(t *testing.T) {
	pc := testContext(t)
	store, err := pc.Store()
	if err != nil {
		t.Fatal(err)
	}
	known := retrievable.New("ITEM")
	stored := retrievable.NewDescriptor(known.ID(), "feature", retrievable.FloatVector{1, 2})
	if _, err := store.Add(context.Background(), stored); err != nil {
		t.Fatal(err)
	}
	other := retrievable.NewDescriptor(known.ID(), "other", retrievable.Long(1))
	if _, err := store.Add(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	already := retrievable.NewWithID(known.ID(), "ITEM")
	already.AddDescriptor(stored.Clone())
	unknown := retrievable.New("ITEM")

	got := collect(t, build(t, newDescriptorLookup, pc, source(known, already, unknown), params("field", "feature")))
	if n := len(got[0].Descriptors); n != 1 {
		t.Errorf("known element has %d descriptors, want 1", n)
	}
	if d, ok := got[0].Descriptor("feature"); !ok || d.ID != stored.ID {
		t.Errorf("feature descriptor not loaded")
	}
	if n := len(got[1].Descriptors); n != 1 {
		t.Errorf("element already holding the descriptor has %d, want 1", n)
	}
	if n := len(got[2].Descriptors); n != 0 {
		t.Errorf("unknown element has %d descriptors", n)
	}

	if _, err := newDescriptorLookup("l", []operator.Operator{source()}, pc, params()); !stderrors.Is(err, dag.ErrMissingParameter) {
		t.Errorf("missing field: error = %v", err)
	}
}
