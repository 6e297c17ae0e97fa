package migrate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionFallbackToRows indicates a failed batch should be retried row by row
	ActionFallbackToRows
	// ActionSkipRow indicates the current row should be discarded
	ActionSkipRow
	// ActionAbort indicates the run should be aborted
	ActionAbort
)

// ErrorCategory defines categories of errors during a pipeline run
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryIgnorable covers errors with no effect on the run, such
	// as creating a schema object that already exists
	ErrorCategoryIgnorable
	// ErrorCategoryRowLevel covers errors that cost a single row
	ErrorCategoryRowLevel
	// ErrorCategoryBatchLevel covers a failed batch write, recoverable by
	// retrying its rows individually
	ErrorCategoryBatchLevel
	// ErrorCategoryConnectionLevel covers a lost or failing connection
	ErrorCategoryConnectionLevel
	// ErrorCategoryFatal covers errors that invalidate the whole run
	ErrorCategoryFatal
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryIgnorable:
		return "Ignorable"
	case ErrorCategoryRowLevel:
		return "RowLevel"
	case ErrorCategoryBatchLevel:
		return "BatchLevel"
	case ErrorCategoryConnectionLevel:
		return "ConnectionLevel"
	case ErrorCategoryFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// ErrorRecord represents a single error during a pipeline run
type ErrorRecord struct {
	Category    ErrorCategory
	Stage       string // pipeline stage that produced the error
	BusinessID  int64  // row identifier, 0 when not row-scoped
	Field       string
	SourceValue interface{}
	Error       error
	Message     string // derived from Error but stored for serialization
	Timestamp   time.Time
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: time.Now(),
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithStage adds the pipeline stage to the error record
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// WithBusinessID adds the affected row's identifier to the error record
func (r ErrorRecord) WithBusinessID(id int64) ErrorRecord {
	r.BusinessID = id
	return r
}

// WithField adds field information to the error record
func (r ErrorRecord) WithField(field string, sourceValue interface{}) ErrorRecord {
	r.Field = field
	r.SourceValue = sourceValue
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}

	if r.BusinessID != 0 {
		sb.WriteString(fmt.Sprintf("BusinessID: %d ", r.BusinessID))
	}

	if r.Field != "" {
		sb.WriteString(fmt.Sprintf("Field: %s ", r.Field))
		if r.SourceValue != nil {
			sb.WriteString(fmt.Sprintf("Value: %v ", r.SourceValue))
		}
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	return sb.String()
}

// ErrorHandler tracks errors across a run, keeping per-category counts and a
// capped sample of records per category so the log stays readable on dirty
// inputs.
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	stageErrors  map[string]int
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		stageErrors:  make(map[string]int),
		maxSamples:   5, // store up to 5 sample errors per category
	}
}

// CategorizeError determines the category of an error based on the driver
// error classification
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var category ErrorCategory
	switch {
	case connector.IsDuplicateObject(err):
		category = ErrorCategoryIgnorable
	case connector.IsConnectionError(err):
		category = ErrorCategoryConnectionLevel
	case connector.IsUniqueViolation(err), connector.IsForeignKeyViolation(err):
		category = ErrorCategoryRowLevel
	default:
		category = ErrorCategoryRowLevel
	}

	if eh.logger != nil {
		eh.logger.Debug("Categorized error",
			zap.String("error", err.Error()),
			zap.String("category", category.String()))
	}

	return category
}

// HandleError records an error and returns the action its category demands
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryIgnorable:
		return ActionContinue

	case ErrorCategoryRowLevel:
		return ActionSkipRow

	case ErrorCategoryBatchLevel:
		return ActionFallbackToRows

	case ErrorCategoryConnectionLevel, ErrorCategoryFatal:
		return ActionAbort

	default:
		return ActionContinue
	}
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	// Increment the category counter
	eh.errorCounts[record.Category]++

	// Save sample errors (up to max samples per category)
	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if record.Stage != "" {
		eh.stageErrors[record.Stage]++
	}

	if eh.logger != nil {
		logLevel := zap.InfoLevel

		switch record.Category {
		case ErrorCategoryIgnorable:
			logLevel = zap.DebugLevel
		case ErrorCategoryBatchLevel, ErrorCategoryConnectionLevel:
			logLevel = zap.WarnLevel
		case ErrorCategoryFatal:
			logLevel = zap.ErrorLevel
		default:
			logLevel = zap.InfoLevel
		}

		// Row-level noise beyond the sample cap drops to debug
		if record.Category == ErrorCategoryRowLevel && eh.errorCounts[record.Category] > eh.maxSamples {
			logLevel = zap.DebugLevel
		}

		eh.logger.Log(logLevel, "Pipeline error",
			zap.String("category", record.Category.String()),
			zap.String("stage", record.Stage),
			zap.Int64("business_id", record.BusinessID),
			zap.String("error", record.Message))
	}
}

// GetErrorSummary generates an error summary report
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int)
	for category, count := range eh.errorCounts {
		summary[category] = count
	}

	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord)
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}

	return samples
}

// GetStageErrorCounts returns error counts by pipeline stage
func (eh *ErrorHandler) GetStageErrorCounts() map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	stageCounts := make(map[string]int)
	for stage, count := range eh.stageErrors {
		stageCounts[stage] = count
	}

	return stageCounts
}
