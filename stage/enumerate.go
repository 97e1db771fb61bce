package stage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

const defaultMimeType = "application/octet-stream"

// fileNamespace derives stable retrievable ids from absolute file paths, so
// that the same file keeps its id across runs.
var fileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mediaflow:file"))

func newFileSystemEnumerator(name string, _ []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	root, err := params.Require("path")
	if err != nil {
		return nil, err
	}
	depth, err := params.Int("depth", -1)
	if err != nil {
		return nil, err
	}
	hidden, err := params.Bool("hidden", false)
	if err != nil {
		return nil, err
	}
	prefetch, err := params.Int("prefetch", 0)
	if err != nil {
		return nil, err
	}
	w := &walker{root: root, depth: depth, hidden: hidden}
	if types := params.List("types"); len(types) > 0 {
		w.types = make(map[string]bool, len(types))
		for _, t := range types {
			w.types["."+strings.ToLower(strings.TrimPrefix(t, "."))] = true
		}
	}
	return operator.NewSource(name, w, operator.WithPrefetch(prefetch)), nil
}

// walker enumerates files under root breadth-first, one directory at a
// time. Entries of a directory are visited in name order.
type walker struct {
	root   string
	depth  int
	hidden bool
	types  map[string]bool
}

func (w *walker) Enumerate(context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
	abs, err := filepath.Abs(w.root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	it := &walkIter{w: w}
	if info.IsDir() {
		it.dirs = []walkDir{{path: abs}}
	} else {
		it.files = []string{abs}
	}
	return it, nil
}

type walkDir struct {
	path  string
	depth int
}

type walkIter struct {
	w     *walker
	dirs  []walkDir
	files []string
}

func (it *walkIter) Next(ctx context.Context) (*retrievable.Retrievable, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if len(it.files) > 0 {
			path := it.files[0]
			it.files = it.files[1:]
			return newFileRetrievable(path), true, nil
		}
		if len(it.dirs) == 0 {
			return nil, false, nil
		}
		dir := it.dirs[0]
		it.dirs = it.dirs[1:]
		if err := it.read(dir); err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", dir.path, err)
		}
	}
}

func (it *walkIter) read(dir walkDir) error {
	entries, err := os.ReadDir(dir.path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !it.w.hidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir.path, e.Name())
		switch {
		case e.IsDir():
			if it.w.depth < 0 || dir.depth < it.w.depth {
				it.dirs = append(it.dirs, walkDir{path: path, depth: dir.depth + 1})
			}
		case e.Type().IsRegular():
			if it.w.types == nil || it.w.types[strings.ToLower(filepath.Ext(path))] {
				it.files = append(it.files, path)
			}
		}
	}
	return nil
}

func (it *walkIter) Close() error {
	it.dirs, it.files = nil, nil
	return nil
}

// mimeTypeOf guesses a file's mime type from its extension.
func mimeTypeOf(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return defaultMimeType
	}
	if media, _, err := mime.ParseMediaType(t); err == nil {
		return media
	}
	return t
}

func newFileRetrievable(path string) *retrievable.Retrievable {
	m := mimeTypeOf(path)
	r := retrievable.NewWithID(uuid.NewSHA1(fileNamespace, []byte(path)), SourcePrefix+string(content.TypeOf(m)))
	r.SetAttribute(retrievable.AttrSource, path)
	r.SetAttribute(retrievable.AttrMimeType, m)
	return r
}

func newListEnumerator(name string, _ []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	items := params.List("items")
	if len(items) == 0 {
		return nil, dag.InvalidParameter("items", fmt.Errorf("list is empty"))
	}
	return operator.NewSource(name, operator.EnumeratorFunc(func(ctx context.Context) (pipeline.Iterator[*retrievable.Retrievable], error) {
		out := make([]*retrievable.Retrievable, 0, len(items))
		for _, item := range items {
			c, err := pc.Content.NewText(item)
			if err != nil {
				return nil, err
			}
			r := retrievable.New(SourcePrefix + string(content.TypeText))
			r.AddContent(c)
			r.SetAttribute(retrievable.AttrMimeType, "text/plain")
			out = append(out, r)
		}
		return pipeline.FromSlice(out).Iter(ctx), nil
	})), nil
}
