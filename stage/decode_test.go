package stage

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func TestTextDecoder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "note.txt", "hello\nworld")
	plain := retrievable.New("ITEM")

	got := collect(t, build(t, newTextDecoder, testContext(t), source(fileItem(path), plain), params()))
	if len(got) != 2 {
		t.Fatalf("got %d elements, want 2", len(got))
	}
	ts, err := texts(got[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 || ts[0] != "hello\nworld" {
		t.Errorf("texts = %q", ts)
	}
	if len(got[1].Content) != 0 {
		t.Errorf("element without source gained content")
	}
}

func TestTextDecoder_MaxSize(t *testing.T) {
	path := writeFile(t, t.TempDir(), "big.txt", "0123456789")

	tests := []struct {
		onError string
		want    int
		wantErr bool
	}{
		{onError: "pass", want: 1},
		{onError: "drop", want: 0},
		{onError: "fail", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.onError, func(t *testing.T) {
			op := build(t, newTextDecoder, testContext(t), source(fileItem(path)), params("maxSize", "4B", "onError", tt.onError))
			got, err := operator.Collect(context.Background(), op)
			if tt.wantErr {
				var opErr *operator.Error
				if !stderrors.As(err, &opErr) {
					t.Fatalf("error = %v, want *operator.Error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Collect() error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d elements, want %d", len(got), tt.want)
			}
			if tt.want == 1 && len(got[0].Content) != 0 {
				t.Errorf("oversized file was decoded")
			}
		})
	}
}

func TestBlobDecoder_Cached(t *testing.T) {
	cache, err := content.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	pc := testContext(t)
	pc.Content = content.CachedFactory{Cache: cache}

	path := writeFile(t, t.TempDir(), "pixel.png", "png-bytes")
	got := collect(t, build(t, newBlobDecoder, pc, source(fileItem(path)), params()))
	if len(got) != 1 || len(got[0].Content) != 1 {
		t.Fatalf("got %d elements", len(got))
	}
	c, ok := got[0].Content[0].(*content.Cached)
	if !ok {
		t.Fatalf("content is %T, want *content.Cached", got[0].Content[0])
	}
	if c.Type() != content.TypeImage || c.MimeType() != "image/png" {
		t.Errorf("content = %s %s", c.Type(), c.MimeType())
	}
	data, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}
	if cache.Live() != 1 {
		t.Errorf("Live() = %d, want 1", cache.Live())
	}
	if err := got[0].Release(); err != nil {
		t.Fatal(err)
	}
	if cache.Live() != 0 {
		t.Errorf("Live() after release = %d, want 0", cache.Live())
	}
}
