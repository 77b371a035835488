package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMonth      = "month"
	FieldAccount    = "account_id"
	FieldBucket     = "bucket_id"
	FieldAmount     = "amount_cents"
	FieldKey        = "storage_key"
	FieldVersion    = "schema_version"
)

// Components defines standard component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentStorage     = "storage"
	ComponentAggregation = "aggregation"
	ComponentValidation  = "validation"
	ComponentMigration   = "migration"
	ComponentRemediation = "remediation"
	ComponentReconciler  = "reconciler"
	ComponentBackup      = "backup"
	ComponentCache       = "cache"
)

// Operations defines standard operation names.
const (
	OpAggregate = "aggregate"
	OpValidate  = "validate"
	OpMigrate   = "migrate"
	OpScan      = "scan"
	OpFix       = "fix"
	OpSync      = "sync"
	OpImport    = "import"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
