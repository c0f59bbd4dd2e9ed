package logger

// Standard field names for structured logging.
const (
	FieldQueryID    = "query_id"
	FieldComponent  = "component"
	FieldDomain     = "domain"
	FieldKind       = "kind"
	FieldStorageKey = "storage_key"
	FieldQuery      = "query"
	FieldExec       = "exec"
	FieldMode       = "mode"
	FieldPage       = "page"
	FieldPerPage    = "per_page"
	FieldCount      = "count"
	FieldPath       = "path"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
)
