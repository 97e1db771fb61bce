// Package stage holds the operator factories available to pipeline
// configurations: enumerators, decoders, extractors, exporters, filters,
// aggregators and merges.
//
// Register adds all of them to a dag.Registry under "stage.<Name>"; the
// simple name is enough to reference a factory from a pipeline file:
//
//	operators:
//	  decoder: { factory: TextDecoder }
//	  stats:   { factory: TextStatsExtractor, parameters: { field: textstats } }
//
// Per-element failures of decoders, extractors and exporters are logged
// and the element is forwarded unchanged. The "onError" parameter changes
// that to "drop" or "fail".
package stage
