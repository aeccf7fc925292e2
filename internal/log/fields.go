package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldUID         = "uid"
	FieldMonth       = "month"
	FieldExpenseID   = "expense_id"
	FieldExpenseName = "expense_name"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldView        = "view"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentSession   = "session"
	ComponentStore     = "store"
	ComponentNotify    = "notify"
	ComponentExport    = "export"
	ComponentScheduler = "scheduler"
	ComponentCache     = "cache"
)
