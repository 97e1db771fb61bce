package stage

import (
	"context"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

func newFileMetadataExtractor(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	field := params.String("field", "file")
	extract := func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		path, ok := sourcePath(r)
		if !ok {
			return r, nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field, retrievable.Struct{
			"size":     retrievable.Long(info.Size()),
			"modified": retrievable.String(info.ModTime().UTC().Format(time.RFC3339)),
			"mime":     retrievable.String(mimeOf(r, mimeTypeOf(path))),
		}))
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindExtract, inputs[0], operator.OneToOne(extract), opts...), nil
}

func newTextStatsExtractor(name string, inputs []operator.Operator, _ *dag.Context, params dag.Params) (operator.Operator, error) {
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	field := params.String("field", "textstats")
	extract := func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		texts, err := texts(r)
		if err != nil || len(texts) == 0 {
			return r, err
		}
		var chars, words, lines int
		for _, t := range texts {
			chars += utf8.RuneCountInString(t)
			words += len(strings.Fields(t))
			lines += lineCount(t)
		}
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field,
			retrievable.DoubleVector{float64(chars), float64(words), float64(lines)}))
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindExtract, inputs[0], operator.OneToOne(extract), opts...), nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// texts returns the text of every text content of r.
func texts(r *retrievable.Retrievable) ([]string, error) {
	var out []string
	for _, c := range r.Content {
		if c.Type() != content.TypeText {
			continue
		}
		switch t := c.(type) {
		case *content.Text:
			out = append(out, t.Text())
		case content.Readable:
			rc, err := t.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, string(data))
		}
	}
	return out, nil
}
