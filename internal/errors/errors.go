package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeClassification
	ErrorTypeAnchorMissing
	ErrorTypeParsing
	ErrorTypeFileSystem
	ErrorTypeConfiguration
	ErrorTypeValidation
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeClassification:
		return "CLASSIFICATION"
	case ErrorTypeAnchorMissing:
		return "ANCHOR_MISSING"
	case ErrorTypeParsing:
		return "PARSING"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// Error codes shared across the analyser packages.
const (
	CodeOpenArchive    = "OPEN_ARCHIVE"
	CodeMissingBase    = "MISSING_BASE"
	CodeMissingSidecar = "MISSING_SIDECAR"
	CodeBadSidecar     = "BAD_SIDECAR"
	CodeBadManifest    = "BAD_MANIFEST"
	CodeBadModule      = "BAD_MODULE"
	CodeExtract        = "EXTRACT"
	CodeCleanup        = "CLEANUP"
	CodeBadConfig      = "BAD_CONFIG"
)

// PkgError is an error carrying a category, a machine code and optional context.
type PkgError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"-"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Stack       []string          `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *PkgError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *PkgError) Unwrap() error {
	return e.Cause
}

// Is matches on type, and on code when the target carries one.
func (e *PkgError) Is(target error) bool {
	t, ok := target.(*PkgError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithContext adds context to the error
func (e *PkgError) WithContext(key, value string) *PkgError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *PkgError) WithSuggestion(suggestion string) *PkgError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PkgError) WithSuggestions(suggestions []string) *PkgError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// FormatDetailed returns a detailed error message with context and suggestions
func (e *PkgError) FormatDetailed() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s error [%s]: %s\n", e.Type, e.Code, e.Message)

	if len(e.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "   %s: %s\n", k, e.Context[k])
		}
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying cause: %v\n", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "   - %s\n", s)
		}
	}

	return b.String()
}

// NewError creates a new PkgError
func NewError(errorType ErrorType, code, message string) *PkgError {
	return &PkgError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     captureStack(),
	}
}

// WrapError wraps an existing error with PkgError
func WrapError(err error, errorType ErrorType, code, message string) *PkgError {
	return &PkgError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
		Stack:     captureStack(),
	}
}

func captureStack() []string {
	var stack []string

	for i := 2; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if strings.Contains(file, "pkgscope") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

// Sentinels for errors.Is checks. They match any code of their type.
var (
	ErrClassification = &PkgError{Type: ErrorTypeClassification}
	ErrAnchorMissing  = &PkgError{Type: ErrorTypeAnchorMissing}
	ErrParsing        = &PkgError{Type: ErrorTypeParsing}
	ErrFileSystem     = &PkgError{Type: ErrorTypeFileSystem}
)

// NewClassificationError reports an input whose container type could not be determined.
func NewClassificationError(source string, cause error) *PkgError {
	return WrapError(cause, ErrorTypeClassification, CodeOpenArchive, "cannot classify "+source).
		WithContext("source", source).
		WithSuggestion("Check that the file is readable and is a ZIP based package")
}

// NewAnchorMissingError reports a container without the item every other entity hangs off.
func NewAnchorMissingError(code, source, message string, cause error) *PkgError {
	return WrapError(cause, ErrorTypeAnchorMissing, code, message).
		WithContext("source", source)
}

// NewParsingError creates a parsing error
func NewParsingError(code, message string, cause error) *PkgError {
	return WrapError(cause, ErrorTypeParsing, code, message).
		WithSuggestions([]string{
			"Verify the file format is correct",
			"Check if the file is corrupted",
		})
}

// NewFileSystemError creates a filesystem error
func NewFileSystemError(code, message string, cause error) *PkgError {
	return WrapError(cause, ErrorTypeFileSystem, code, message).
		WithSuggestions([]string{
			"Check file permissions",
			"Verify disk space availability",
		})
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string, cause error) *PkgError {
	return WrapError(cause, ErrorTypeConfiguration, code, message).
		WithSuggestion("Check the configuration file syntax")
}

// TypeOf returns the category of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var pe *PkgError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}

// Logger interface for error logging
type Logger interface {
	Error(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	TotalErrors   int               `json:"total_errors"`
	ErrorsByType  map[ErrorType]int `json:"errors_by_type"`
	ErrorsByCode  map[string]int    `json:"errors_by_code"`
	LastError     *PkgError         `json:"last_error,omitempty"`
	LastErrorTime time.Time         `json:"last_error_time"`
}

// ErrorHandler logs errors and keeps running statistics. Safe for concurrent use.
type ErrorHandler struct {
	logger Logger
	mu     sync.Mutex
	stats  *ErrorStats
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		stats:  newStats(),
	}
}

func newStats() *ErrorStats {
	return &ErrorStats{
		ErrorsByType: make(map[ErrorType]int),
		ErrorsByCode: make(map[string]int),
	}
}

// Handle records err and logs it. Nil is ignored.
func (eh *ErrorHandler) Handle(err error) *PkgError {
	if err == nil {
		return nil
	}

	var pe *PkgError
	if !stderrors.As(err, &pe) {
		pe = WrapError(err, ErrorTypeUnknown, "UNKNOWN", err.Error())
	}

	eh.mu.Lock()
	eh.stats.TotalErrors++
	eh.stats.ErrorsByType[pe.Type]++
	eh.stats.ErrorsByCode[pe.Code]++
	eh.stats.LastError = pe
	eh.stats.LastErrorTime = time.Now()
	eh.mu.Unlock()

	if eh.logger != nil {
		eh.logger.Error("%s [%s] %s", pe.Type, pe.Code, err.Error())
		for key, value := range pe.Context {
			eh.logger.Debug("error context: %s = %s", key, value)
		}
	}
	return pe
}

// GetStats returns a copy of the error statistics
func (eh *ErrorHandler) GetStats() ErrorStats {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	out := *eh.stats
	out.ErrorsByType = make(map[ErrorType]int, len(eh.stats.ErrorsByType))
	for k, v := range eh.stats.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	out.ErrorsByCode = make(map[string]int, len(eh.stats.ErrorsByCode))
	for k, v := range eh.stats.ErrorsByCode {
		out.ErrorsByCode[k] = v
	}
	return out
}

// Reset resets error statistics
func (eh *ErrorHandler) Reset() {
	eh.mu.Lock()
	eh.stats = newStats()
	eh.mu.Unlock()
}
