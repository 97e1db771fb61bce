package stage

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// AttrExportURL is set by TextExporter to where the text was written.
const AttrExportURL = "export.url"

// persister writes the descriptors of its input to a store in batches and
// forwards the elements. A storage error ends the stream.
type persister struct {
	name    string
	input   operator.Operator
	store   descriptor.Writer
	fields  []string
	size    int
	timeout time.Duration
	log     *logger.Logger
}

func newDescriptorPersister(name string, inputs []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	size, err := params.Int("batch", 1)
	if err != nil {
		return nil, err
	}
	timeout, err := params.Duration("batchTimeout", 0)
	if err != nil {
		return nil, err
	}
	store, err := pc.Store()
	if err != nil {
		return nil, err
	}
	return &persister{
		name:    name,
		input:   inputs[0],
		store:   store,
		fields:  params.List("fields"),
		size:    size,
		timeout: timeout,
		log:     logger.Get("stage").WithFields(logger.Fields(logger.FieldOperator, name, logger.FieldSchema, pc.Schema)),
	}, nil
}

func (p *persister) Name() string             { return p.name }
func (p *persister) Kind() operator.Kind      { return operator.KindExport }
func (p *persister) Input() operator.Operator { return p.input }

func (p *persister) Stream(ctx context.Context) operator.Stream {
	batches := pipeline.Batch(operator.From(p.input), p.size, p.timeout)
	return operator.Seal(pipeline.FlatMap(batches, p.persist).Iter(ctx))
}

func (p *persister) persist(ctx context.Context, batch []*retrievable.Retrievable) (pipeline.Iterator[*retrievable.Retrievable], error) {
	var ds []*retrievable.Descriptor
	for _, r := range batch {
		if retrievable.IsTerminal(r) {
			continue
		}
		for _, d := range r.Descriptors {
			if len(p.fields) == 0 || slices.Contains(p.fields, d.Field) {
				ds = append(ds, d)
			}
		}
	}
	if len(ds) > 0 {
		allNew, err := p.store.AddAll(ctx, ds)
		if err != nil {
			if !errors.IsAppError(err) {
				err = errors.StorageError("add", err)
			}
			return nil, &operator.Error{Operator: p.name, Err: err}
		}
		if !allNew {
			p.log.Debug("some descriptors were already stored", logger.Fields(logger.FieldCount, len(ds)))
		}
	}
	return pipeline.FromSlice(batch).Iter(ctx), nil
}

func newTextExporter(name string, inputs []operator.Operator, pc *dag.Context, params dag.Params) (operator.Operator, error) {
	if pc.Resolver == nil {
		return nil, dag.InvalidParameter("resolverName", fmt.Errorf("%s needs a resolver", TextExporter))
	}
	opts, err := transformerOptions(name, params)
	if err != nil {
		return nil, err
	}
	res := pc.Resolver
	export := func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		var urls []string
		for _, c := range r.Content {
			t, ok := c.(*content.Text)
			if !ok {
				continue
			}
			w, err := res.OpenOutputStream(t.ID(), t.MimeType())
			if err != nil {
				return nil, err
			}
			if _, err := io.WriteString(w, t.Text()); err != nil {
				_ = w.Close()
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			target, err := res.Resolve(t.ID(), t.MimeType())
			if err != nil {
				return nil, err
			}
			urls = append(urls, target.URL())
		}
		if len(urls) > 0 {
			r.SetAttribute(AttrExportURL, strings.Join(urls, ","))
		}
		return r, nil
	}
	return operator.NewTransformer(name, operator.KindExport, inputs[0], operator.OneToOne(export), opts...), nil
}
