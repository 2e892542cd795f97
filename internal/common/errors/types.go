package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfigLoad represents a configuration document that is missing or malformed
	ErrTypeConfigLoad ErrorType = "config_load"
	// ErrTypeConfigKey represents a required key absent from a configuration section
	ErrTypeConfigKey ErrorType = "config_key"
	// ErrTypeSourceUnavailable represents an ingestion source that cannot be reached
	ErrTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrTypeEmptyResult represents an ingestion source that returned no records
	ErrTypeEmptyResult ErrorType = "empty_result"
	// ErrTypeSchemaMismatch represents a dataset that does not conform to its schema
	ErrTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrTypeTraining represents a model fit that could not complete
	ErrTypeTraining ErrorType = "training"
	// ErrTypeTrackerLogging represents an experiment tracker call that failed
	ErrTypeTrackerLogging ErrorType = "tracker_logging"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConfigLoadError creates an error for a configuration document that could not be loaded
func ConfigLoadError(path string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConfigLoad,
		Message: fmt.Sprintf("failed to load configuration document %s", path),
		Cause:   cause,
	}
}

// ConfigKeyError creates an error naming the missing key of a configuration section
func ConfigKeyError(section, key string) *AppError {
	return &AppError{
		Type:    ErrTypeConfigKey,
		Message: fmt.Sprintf("missing required key %s.%s", section, key),
		Context: map[string]interface{}{"section": section, "key": key},
	}
}

// SourceUnavailableError creates an error for an unreachable ingestion source
func SourceUnavailableError(source string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeSourceUnavailable,
		Message: fmt.Sprintf("ingestion source %s is unavailable", source),
		Cause:   cause,
	}
}

// EmptyResultError creates an error for an ingestion that yielded no records
func EmptyResultError(source string) *AppError {
	return &AppError{
		Type:    ErrTypeEmptyResult,
		Message: fmt.Sprintf("ingestion source %s returned no records", source),
	}
}

// SchemaMismatchError creates an error for a dataset that failed schema validation
func SchemaMismatchError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeSchemaMismatch,
		Message: msg,
	}
}

// TrainingError creates an error for a failed model fit
func TrainingError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTraining,
		Message: msg,
		Cause:   cause,
	}
}

// TrackerLoggingError creates an error for a failed experiment tracker call
func TrackerLoggingError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTrackerLogging,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if err, or any error it wraps, is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the type of the outermost AppError in the chain, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}
