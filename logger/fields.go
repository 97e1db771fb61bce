package logger

// Field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
	FieldJobID         = "job_id"
	FieldPipeline      = "pipeline"
	FieldOperator      = "operator"
	FieldRetrievableID = "retrievable_id"
	FieldSchema        = "schema"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldCount         = "count"
)

// Fields builds a field map from alternating keys and values. Non-string
// keys and a trailing key without value are ignored.
//
//	log.Info("job finished", logger.Fields(logger.FieldJobID, id))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
