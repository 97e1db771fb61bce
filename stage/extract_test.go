package stage

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/mediaflow/retrievable"
)

func TestFileMetadataExtractor(t *testing.T) {
	path := writeFile(t, t.TempDir(), "page.html", "hello")
	got := collect(t, build(t, newFileMetadataExtractor, testContext(t), source(fileItem(path)), params()))
	d, ok := got[0].Descriptor("file")
	if !ok {
		t.Fatal("no file descriptor")
	}
	s, ok := d.Value.(retrievable.Struct)
	if !ok {
		t.Fatalf("value is %T, want Struct", d.Value)
	}
	if s["size"] != retrievable.Long(5) {
		t.Errorf("size = %v", s["size"])
	}
	if s["mime"] != retrievable.String("text/html") {
		t.Errorf("mime = %v", s["mime"])
	}
	if m, _ := s["modified"].(retrievable.String); m == "" {
		t.Errorf("modified is empty")
	}
	if d.RetrievableID != got[0].ID() {
		t.Errorf("descriptor belongs to %s", d.RetrievableID)
	}
}

func TestTextStatsExtractor(t *testing.T) {
	plain := retrievable.New("ITEM")
	got := collect(t, build(t, newTextStatsExtractor, testContext(t),
		source(textItem("héllo world\nfoo\n"), plain), params("field", "stats")))

	d, ok := got[0].Descriptor("stats")
	if !ok {
		t.Fatal("no stats descriptor")
	}
	if diff := cmp.Diff(retrievable.DoubleVector{16, 3, 2}, d.Value); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if len(got[1].Descriptors) != 0 {
		t.Errorf("element without text got descriptors")
	}
}

func TestLineCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one\n", 1},
		{"one\ntwo", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		if got := lineCount(tt.in); got != tt.want {
			t.Errorf("lineCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
