package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldFile        = "file"
	FieldPlatform    = "platform"
	FieldRow         = "row"
	FieldLine        = "line"
	FieldReason      = "reason"
	FieldRecords     = "records"
	FieldWarnings    = "warnings"
	FieldDropped     = "dropped"
	FieldDuplicates  = "duplicates"
	FieldFiles       = "files"
	FieldFailed      = "failed_files"
	FieldRules       = "rules"
	FieldPath        = "path"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentMerge    = "merge"
	ComponentSource   = "source"
	ComponentCategory = "category"
	ComponentLedger   = "ledger"
	ComponentReport   = "report"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentSheets   = "sheets"
	ComponentService  = "service"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpParse    = "parse"
	OpResolve  = "resolve"
	OpDedupe   = "dedupe"
	OpWrite    = "write"
	OpRead     = "read"
	OpMirror   = "mirror"
	OpPublish  = "publish"
	OpExport   = "export"
	OpRender   = "render"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeParse         = "parse_error"
	ErrorTypeMapping       = "mapping_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRunID adds the merge run identifier
func (f LogFields) WithRunID(runID string) LogFields {
	f[FieldRunID] = runID
	return f
}

// WithFile adds the source file and, when known, the platform that parsed it
func (f LogFields) WithFile(file, platform string) LogFields {
	f[FieldFile] = file
	if platform != "" {
		f[FieldPlatform] = platform
	}
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCounts adds record and warning counters
func (f LogFields) WithCounts(records, warnings int) LogFields {
	f[FieldRecords] = records
	f[FieldWarnings] = warnings
	return f
}

// WithDuration adds elapsed milliseconds and the success flag
func (f LogFields) WithDuration(durationMs int64, success bool) LogFields {
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
