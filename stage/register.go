package stage

import (
	"fmt"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/operator"
	"github.com/kbukum/mediaflow/retrievable"
)

// Factory names.
const (
	FileSystemEnumerator    = "FileSystemEnumerator"
	ListEnumerator          = "ListEnumerator"
	TextDecoder             = "TextDecoder"
	BlobDecoder             = "BlobDecoder"
	FileMetadataExtractor   = "FileMetadataExtractor"
	TextStatsExtractor      = "TextStatsExtractor"
	HTTPFeatureExtractor    = "HTTPFeatureExtractor"
	CommandFeatureExtractor = "CommandFeatureExtractor"
	DescriptorPersister     = "DescriptorPersister"
	TextExporter            = "TextExporter"
	DescriptorLookup        = "DescriptorLookup"
	TypeFilter              = "TypeFilter"
	DistinctFilter          = "DistinctFilter"
	ContentAggregator       = "ContentAggregator"
	DescriptorAggregator    = "DescriptorAggregator"
	Combine                 = "Combine"
	Concat                  = "Concat"
)

// Qualifier prefixes every factory name.
const Qualifier = "stage."

// SourcePrefix starts the type of every enumerated retrievable.
const SourcePrefix = "SOURCE:"

var factories = map[string]dag.Factory{
	FileSystemEnumerator:    dag.NewFactory(operator.KindSource, newFileSystemEnumerator),
	ListEnumerator:          dag.NewFactory(operator.KindSource, newListEnumerator),
	TextDecoder:             dag.NewFactory(operator.KindTransform, newTextDecoder),
	BlobDecoder:             dag.NewFactory(operator.KindTransform, newBlobDecoder),
	FileMetadataExtractor:   dag.NewFactory(operator.KindExtract, newFileMetadataExtractor),
	TextStatsExtractor:      dag.NewFactory(operator.KindExtract, newTextStatsExtractor),
	HTTPFeatureExtractor:    dag.NewFactory(operator.KindExtract, newHTTPFeatureExtractor),
	CommandFeatureExtractor: dag.NewFactory(operator.KindExtract, newCommandFeatureExtractor),
	DescriptorPersister:     dag.NewFactory(operator.KindExport, newDescriptorPersister),
	TextExporter:            dag.NewFactory(operator.KindExport, newTextExporter),
	DescriptorLookup:        dag.NewFactory(operator.KindTransform, newDescriptorLookup),
	TypeFilter:              dag.NewFactory(operator.KindTransform, newTypeFilter),
	DistinctFilter:          dag.NewFactory(operator.KindTransform, newDistinctFilter),
	ContentAggregator:       dag.NewFactory(operator.KindAggregate, newContentAggregator),
	DescriptorAggregator:    dag.NewFactory(operator.KindAggregate, newDescriptorAggregator),
	Combine:                 dag.NewFactory(operator.KindMerge, newCombine),
	Concat:                  dag.NewFactory(operator.KindMerge, newConcat),
}

// Register adds every stage factory to reg.
func Register(reg *dag.Registry) error {
	for name, f := range factories {
		if err := reg.Register(Qualifier+name, f); err != nil {
			return err
		}
	}
	return nil
}

// transformerOptions reads the "onError" parameter.
func transformerOptions(name string, params dag.Params) ([]operator.TransformerOption, error) {
	policy := operator.PassThrough
	switch v := params.String("onError", "pass"); v {
	case "pass", "":
	case "drop":
		policy = operator.Drop
	case "fail":
		policy = operator.Fail
	default:
		return nil, dag.InvalidParameter("onError", fmt.Errorf("unknown failure policy %q", v))
	}
	return []operator.TransformerOption{
		operator.WithFailurePolicy(policy),
		operator.WithLogger(logger.Get("stage").WithFields(logger.Fields(logger.FieldOperator, name))),
	}, nil
}

// sourcePath returns the file an element was enumerated from.
func sourcePath(r *retrievable.Retrievable) (string, bool) {
	path, ok := r.StringAttribute(retrievable.AttrSource)
	return path, ok && path != ""
}

func mimeOf(r *retrievable.Retrievable, def string) string {
	if m, ok := r.StringAttribute(retrievable.AttrMimeType); ok && m != "" {
		return m
	}
	return def
}
