package aggregate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kbukum/mediaflow/content"
	apperrors "github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func TestParseMethod(t *testing.T) {
	for _, in := range []string{"first", "LAST", " Middle ", "mean"} {
		if _, err := ParseMethod(in); err != nil {
			t.Errorf("ParseMethod(%q) error: %v", in, err)
		}
	}
	if _, err := ParseMethod("median"); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("ParseMethod(median) = %v", err)
	}
}

func TestPick(t *testing.T) {
	group := []int{10, 20, 30, 40}
	tests := map[Method]int{First: 10, Last: 40, Middle: 30}
	for m, want := range tests {
		if got := Pick(group, m); got != want {
			t.Errorf("Pick(%s) = %d, want %d", m, got, want)
		}
	}
	for _, tc := range []struct {
		group []int
		want  int
	}{
		{[]int{1}, 1},
		{[]int{1, 2}, 2},
		{[]int{1, 2, 3}, 2},
		{[]int{1, 2, 3, 4, 5}, 3},
	} {
		if got := Pick(tc.group, Middle); got != tc.want {
			t.Errorf("Pick(MIDDLE) of %v = %d, want %d", tc.group, got, tc.want)
		}
	}
}

func TestMeanValue(t *testing.T) {
	rid := retrievable.New("X").ID()
	group := func(vs ...retrievable.Value) []*retrievable.Descriptor {
		out := make([]*retrievable.Descriptor, len(vs))
		for i, v := range vs {
			out[i] = retrievable.NewDescriptor(rid, "v", v)
		}
		return out
	}
	third := float32(1.0 / 3.0)
	tests := []struct {
		name  string
		group []*retrievable.Descriptor
		want  retrievable.Value
	}{
		{
			name: "unit basis",
			group: group(
				retrievable.FloatVector{1, 0, 0},
				retrievable.FloatVector{0, 1, 0},
				retrievable.FloatVector{0, 0, 1},
			),
			want: retrievable.FloatVector{third, third, third},
		},
		{
			name:  "mixed vectors",
			group: group(retrievable.FloatVector{1, 0}, retrievable.DoubleVector{0, 1}),
			want:  retrievable.DoubleVector{0.5, 0.5},
		},
		{
			name:  "scalars",
			group: group(retrievable.Long(1), retrievable.Float(2), retrievable.Double(6)),
			want:  retrievable.Double(3),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := MeanValue(tc.group)
			if err != nil || !ok {
				t.Fatalf("MeanValue() = %v, %v, %v", got, ok, err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}

	if _, ok, err := MeanValue(group(retrievable.String("a"), retrievable.Int(1))); ok || err != nil {
		t.Fatalf("MeanValue(string) = %v, %v", ok, err)
	}
}

func descriptorValues(r *retrievable.Retrievable) map[string]retrievable.Value {
	out := map[string]retrievable.Value{}
	for _, d := range r.Descriptors {
		out[d.Field] = d.Value
	}
	return out
}

func TestReduceDescriptors_Mean(t *testing.T) {
	r := retrievable.New("X")
	add := func(field string, v retrievable.Value) {
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field, v))
	}
	add("clip", retrievable.FloatVector{1, 2})
	add("label", retrievable.String("cat"))
	add("clip", retrievable.FloatVector{3, 4})
	add("hist", retrievable.IntVector{1, 0})
	add("label", retrievable.String("dog"))
	add("hist", retrievable.IntVector{2, 1})
	add("score", retrievable.Int(1))
	add("score", retrievable.Double(2))

	got, err := ReduceDescriptors(r, Mean)
	if err != nil {
		t.Fatal(err)
	}
	var fields []string
	for _, d := range got {
		fields = append(fields, d.Field)
	}
	if diff := cmp.Diff([]string{"clip", "label", "hist", "score"}, fields); diff != "" {
		t.Fatalf("field order (-want +got):\n%s", diff)
	}

	r.Descriptors = got
	want := map[string]retrievable.Value{
		"clip":  retrievable.FloatVector{2, 3},
		"label": retrievable.String("cat"),
		"hist":  retrievable.DoubleVector{1.5, 0.5},
		"score": retrievable.Double(1.5),
	}
	if diff := cmp.Diff(want, descriptorValues(r)); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestReduceDescriptors_DimensionMismatch(t *testing.T) {
	r := retrievable.New("X")
	r.AddDescriptor(retrievable.NewDescriptor(r.ID(), "v", retrievable.FloatVector{1}))
	r.AddDescriptor(retrievable.NewDescriptor(r.ID(), "v", retrievable.FloatVector{1, 2}))
	if _, err := ReduceDescriptors(r, Mean); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error = %v", err)
	}
}

func TestReduceDescriptors_Select(t *testing.T) {
	r := retrievable.New("X")
	for i := int32(0); i < 5; i++ {
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), "frame", retrievable.Int(i)))
	}
	tests := map[Method]retrievable.Value{
		First:  retrievable.Int(0),
		Last:   retrievable.Int(4),
		Middle: retrievable.Int(2),
	}
	for m, want := range tests {
		got, err := ReduceDescriptors(r, m)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Value != want {
			t.Errorf("%s: got %v", m, got)
		}
	}
}

func TestReduceContent(t *testing.T) {
	cache, err := content.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	img1, _ := cache.Put(content.TypeImage, "image/png", strings.NewReader("1"))
	img2, _ := cache.Put(content.TypeImage, "image/png", strings.NewReader("2"))
	txt := content.NewText("caption")
	img3, _ := cache.Put(content.TypeImage, "image/png", strings.NewReader("3"))

	got, err := ReduceContent([]content.Content{img1, txt, img2, img3}, Last)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != content.Content(img3) || got[1] != content.Content(txt) {
		t.Fatalf("ReduceContent(LAST) = %v", got)
	}
	if cache.Live() != 1 {
		t.Fatalf("dropped images not released: %d live", cache.Live())
	}

	if _, err := ReduceContent(got, Mean); !errors.Is(err, ErrMeanOnContent) {
		t.Fatalf("ReduceContent(MEAN) = %v", err)
	}
}

func TestNewContentAggregator_RejectsMean(t *testing.T) {
	src := operator.NewSource("src", operator.SliceEnumerator())
	_, err := NewContentAggregator("agg", src, Mean)
	if !apperrors.IsAppError(err) || !errors.Is(err, ErrMeanOnContent) {
		t.Fatalf("error = %v", err)
	}
}

func TestDescriptorAggregator_Operator(t *testing.T) {
	r := retrievable.New("X")
	r.AddDescriptor(retrievable.NewDescriptor(r.ID(), "v", retrievable.DoubleVector{0, 2}))
	r.AddDescriptor(retrievable.NewDescriptor(r.ID(), "v", retrievable.DoubleVector{2, 4}))

	src := operator.NewSource("src", operator.SliceEnumerator(r))
	agg := NewDescriptorAggregator("mean", src, Mean)
	if agg.Kind() != operator.KindAggregate {
		t.Fatalf("Kind() = %s", agg.Kind())
	}
	got, err := operator.Collect(context.Background(), agg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(retrievable.Value(retrievable.DoubleVector{1, 3}), got[0].Descriptors[0].Value); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
