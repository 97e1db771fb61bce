// Package dag turns declarative pipeline configurations into wired graphs
// of stream operators.
//
// A PipelineConfig names operator definitions (a factory plus parameters)
// and operations (an operator applied to the outputs of other operations).
// The Builder validates the whole configuration before instantiating
// anything, orders operations topologically, inserts Broadcast operators
// where one output feeds several consumers and Combine or Concat operators
// where an operation has several inputs. Configurations are loaded from
// YAML or JSON files by a FileLoader.
package dag
