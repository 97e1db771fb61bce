package retrievable

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/content"
)

func TestTerminal(t *testing.T) {
	if !IsTerminal(Terminal) {
		t.Fatal("Terminal is not terminal")
	}
	r := New("SOURCE:IMAGE")
	if IsTerminal(r) {
		t.Fatal("regular retrievable reported terminal")
	}
	if Terminal.Copy() != Terminal {
		t.Fatal("Terminal.Copy() must return Terminal")
	}
	if err := Terminal.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestRetrievable_CopyIsIndependent(t *testing.T) {
	r := New("SOURCE:TEXT")
	r.SetAttribute(AttrSource, "/tmp/a.txt")
	r.AddContent(content.NewText("abc"))
	r.AddDescriptor(NewDescriptor(r.ID(), "vec", FloatVector{1, 2, 3}))

	cp := r.Copy()
	if cp.ID() != r.ID() {
		t.Fatalf("copy changed id")
	}

	cp.SetAttribute(AttrSource, "/tmp/b.txt")
	cp.Descriptors[0].Value.(FloatVector)[0] = 42
	cp.AddDescriptor(NewDescriptor(r.ID(), "extra", Boolean(true)))

	if got, _ := r.StringAttribute(AttrSource); got != "/tmp/a.txt" {
		t.Fatalf("original attribute changed to %q", got)
	}
	if diff := cmp.Diff(FloatVector{1, 2, 3}, r.Descriptors[0].Value); diff != "" {
		t.Fatalf("original descriptor changed (-want +got):\n%s", diff)
	}
	if len(r.Descriptors) != 1 {
		t.Fatalf("original gained descriptors: %d", len(r.Descriptors))
	}
}

func TestRetrievable_CopyRetainsSharedContent(t *testing.T) {
	cache, err := content.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	h, err := cache.Put(content.TypeImage, "image/png", strings.NewReader("img"))
	if err != nil {
		t.Fatal(err)
	}
	r := New("SOURCE:IMAGE")
	r.AddContent(h)

	cp := r.Copy()
	if err := r.Release(); err != nil {
		t.Fatal(err)
	}
	if cache.Live() != 1 {
		t.Fatalf("content freed while a copy still holds it")
	}
	if err := cp.Release(); err != nil {
		t.Fatal(err)
	}
	if cache.Live() != 0 {
		t.Fatalf("content not freed after last release")
	}
}

func TestRetrievable_Relationships(t *testing.T) {
	parent := New("SOURCE:VIDEO")
	seg := New("SEGMENT")
	seg.AddRelationship("partOf", parent)

	if seg.Relationships[0].ObjectID != parent.ID() {
		t.Fatal("relationship does not reference parent id")
	}
	if seg.Relationships[0].Object != parent {
		t.Fatal("relationship lost direct reference")
	}
}

func TestNewWithID(t *testing.T) {
	id := uuid.New()
	r := NewWithID(id, "X")
	if r.ID() != id {
		t.Fatalf("ID() = %s, want %s", r.ID(), id)
	}
	if _, ok := r.Descriptor("missing"); ok {
		t.Fatal("Descriptor() found a missing field")
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{"a", String("a")},
		{true, Boolean(true)},
		{int32(3), Int(3)},
		{7, Long(7)},
		{float32(1.5), Float(1.5)},
		{2.5, Double(2.5)},
		{[]float32{1}, FloatVector{1}},
		{[]bool{true}, BooleanVector{true}},
		{map[string]any{"size": int64(10)}, Struct{"size": Long(10)}},
	}
	for _, tt := range tests {
		got, err := ValueOf(tt.in)
		if err != nil {
			t.Fatalf("ValueOf(%v) error: %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ValueOf(%v) (-want +got):\n%s", tt.in, diff)
		}
	}
	if _, err := ValueOf(struct{}{}); err == nil {
		t.Fatal("ValueOf(struct{}) should fail")
	}
}

func TestNumeric_Float64s(t *testing.T) {
	tests := []struct {
		v    Numeric
		want []float64
	}{
		{Int(2), []float64{2}},
		{Boolean(true), []float64{1}},
		{IntVector{1, 2}, []float64{1, 2}},
		{BooleanVector{true, false}, []float64{1, 0}},
		{DoubleVector{0.5}, []float64{0.5}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.v.Float64s()); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tt.v.Kind(), diff)
		}
	}
}

func TestStruct_CloneDeep(t *testing.T) {
	s := Struct{"v": FloatVector{1}}
	cp := s.Clone().(Struct)
	cp["v"].(FloatVector)[0] = 9
	if s["v"].(FloatVector)[0] != 1 {
		t.Fatal("Struct.Clone is shallow")
	}
	if diff := cmp.Diff([]string{"v"}, s.Keys()); diff != "" {
		t.Fatal(diff)
	}
}
