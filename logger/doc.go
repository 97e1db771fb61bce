// Package logger provides structured logging for mediaflow using zerolog.
//
// Operators, the graph builder and the scheduler each obtain a
// component-scoped logger from the named registry and attach pipeline
// fields (job id, pipeline name, operator name, retrievable id) as
// structured values.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("scheduler")
//	log.Info("job completed", logger.Fields(logger.FieldJobID, id))
package logger
