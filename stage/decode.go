package stage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

const defaultMaxTextSize = 16 << 20

func newTextDecoder(name string, inputs []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	limit, err := params.Size("maxSize", defaultMaxTextSize)
	if err != nil {
		return nil, err
	}
	decode := func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		path, ok := sourcePath(r)
		if !ok {
			return r, nil
		}
		data, err := readLimited(path, limit)
		if err != nil {
			return nil, err
		}
		c, err := pc.Content.NewText(string(data))
		if err != nil {
			return nil, err
		}
		r.AddContent(c)
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindTransform, inputs[0], operator.OneToOne(decode), opts...), nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, limit)
	}
	return data, nil
}

func newBlobDecoder(name string, inputs []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	decode := func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		path, ok := sourcePath(r)
		if !ok {
			return r, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		m := mimeOf(r, mimeTypeOf(path))
		c, err := pc.Content.NewBinary(content.TypeOf(m), m, f)
		if err != nil {
			return nil, err
		}
		r.AddContent(c)
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindTransform, inputs[0], operator.OneToOne(decode), opts...), nil
}
