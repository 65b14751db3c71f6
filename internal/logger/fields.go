package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	FieldRequestID    = "request_id"
	FieldComponent    = "component"
	FieldSubmissionID = "submission_id"
	FieldCatalogID    = "catalog_id"
	FieldRequesterID  = "requester_id"
	FieldReviewerID   = "reviewer_id"
	FieldMethod       = "search_method"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
