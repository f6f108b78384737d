package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldBackend    = "backend"
	FieldCountry    = "country"
	FieldYear       = "year"
	FieldRows       = "rows"
	FieldFile       = "file"
	FieldSheet      = "sheet"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSnapshot  = "snapshot"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentQuery     = "query"
	ComponentSelection = "selection"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpRead     = "read"
	OpValidate = "validate"
	OpRender   = "render"
	OpSelect   = "select"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
