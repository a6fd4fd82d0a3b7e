package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext returns a copy of ctx carrying logger
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogFileParsed logs a successfully parsed export file
func (sl *StructuredLogger) LogFileParsed(ctx context.Context, file, platform string, records, warnings int) {
	fields := NewFields().
		WithFile(file, platform).
		WithCounts(records, warnings).
		WithOperation(OpParse)

	sl.logger.WithComponent(ComponentSource).InfoContext(ctx, "File parsed", fields.ToSlice()...)
}

// LogFileFailed logs an export file that could not be parsed
func (sl *StructuredLogger) LogFileFailed(ctx context.Context, file string, err error) {
	fields := NewFields().
		WithFile(file, "").
		WithError(err).
		WithOperation(OpParse)
	fields["error_type"] = ErrorTypeParse

	sl.logger.WithComponent(ComponentSource).WarnContext(ctx, "File skipped", fields.ToSlice()...)
}

// LogRowWarning logs a single coerced or dropped row at debug level
func (sl *StructuredLogger) LogRowWarning(ctx context.Context, file string, row int, reason string) {
	fields := NewFields().WithFile(file, "")
	fields[FieldRow] = row
	fields[FieldReason] = reason

	sl.logger.WithComponent(ComponentSource).DebugContext(ctx, "Row warning", fields.ToSlice()...)
}

// LogMappingError logs a skipped mapping rule
func (sl *StructuredLogger) LogMappingError(ctx context.Context, path string, line int, reason string) {
	fields := NewFields().WithOperation(OpLoad)
	fields[FieldPath] = path
	fields[FieldLine] = line
	fields[FieldReason] = reason
	fields["error_type"] = ErrorTypeMapping

	sl.logger.WithComponent(ComponentCategory).WarnContext(ctx, "Mapping rule skipped", fields.ToSlice()...)
}

// RunSummary is the aggregate outcome of one merge run
type RunSummary struct {
	RunID      string
	Files      int
	Failed     int
	Records    int
	Warnings   int
	Dropped    int
	Duplicates int
	DurationMs int64
}

// LogRunSummary logs the aggregate outcome of a merge run
func (sl *StructuredLogger) LogRunSummary(ctx context.Context, s RunSummary) {
	fields := NewFields().
		WithRunID(s.RunID).
		WithCounts(s.Records, s.Warnings).
		WithDuration(s.DurationMs, s.Records > 0).
		WithOperation(OpWrite)
	fields[FieldFiles] = s.Files
	fields[FieldFailed] = s.Failed
	fields[FieldDropped] = s.Dropped
	fields[FieldDuplicates] = s.Duplicates

	level := slog.LevelInfo
	if s.Failed > 0 || s.Dropped > 0 {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Merge completed", append([]any{FieldComponent, ComponentMerge}, fields.ToSlice()...)...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, allFields.ToSlice()...)
}
