package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeCredential ErrorType = "credential"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeResponse   ErrorType = "model_response"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// Gateway cause codes.
const (
	CodeCredentialMissing = "CREDENTIAL_MISSING"
	CodeCredentialInvalid = "CREDENTIAL_INVALID"
	CodeModelUnavailable  = "MODEL_UNAVAILABLE"
	CodeEmptyResponse     = "EMPTY_RESPONSE"
	CodeSchemaViolation   = "SCHEMA_VIOLATION"
	CodeTransport         = "TRANSPORT"
	CodeTimeout           = "TIMEOUT"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  source,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   source,
		Context:  make(map[string]interface{}),
	}
}

// CodeOf returns the code of the first AppError in the chain, or "" if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// TypeOf returns the type of the first AppError in the chain.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// UserMessage returns the message meant for the person in front of the screen.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternalServer.Message
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle processes an error according to its type
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		h.handleAppError(ctx, appErr)
	} else {
		h.handleGenericError(ctx, err)
	}
}

func (h *Handler) handleAppError(ctx context.Context, err *AppError) {
	switch err.Type {
	case ErrorTypeValidation, ErrorTypeConflict, ErrorTypeNotFound:
		h.logger.WarnContext(ctx, "Request rejected", err.LogFields()...)
	case ErrorTypeCredential:
		h.logger.WarnContext(ctx, "Credential error", err.LogFields()...)
	case ErrorTypeResponse:
		h.logger.WarnContext(ctx, "Unusable model response", err.LogFields()...)
	case ErrorTypeExternal, ErrorTypeInternal, ErrorTypeTimeout:
		h.logger.ErrorContext(ctx, "Critical error", err.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", err.LogFields()...)
	}
}

func (h *Handler) handleGenericError(ctx context.Context, err error) {
	h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
}

// Predefined errors
var (
	ErrCredentialMissing = New(ErrorTypeCredential, CodeCredentialMissing, "No API key is configured. Select an API key and try again.")
	ErrCredentialInvalid = New(ErrorTypeCredential, CodeCredentialInvalid, "The API key was rejected. Please select a different API key.")
	ErrModelUnavailable  = New(ErrorTypeExternal, CodeModelUnavailable, "The requested model is not available for this API key. Please reselect your API key or model.")
	ErrEmptyResponse     = New(ErrorTypeResponse, CodeEmptyResponse, "The model returned an empty response.")
	ErrSchemaViolation   = New(ErrorTypeResponse, CodeSchemaViolation, "The model response did not match the expected format.")
	ErrTransport         = New(ErrorTypeExternal, CodeTransport, "The model service request failed.")
	ErrTimeout           = New(ErrorTypeTimeout, CodeTimeout, "The model service did not answer in time.")
	ErrInternalServer    = New(ErrorTypeInternal, "INTERNAL", "Internal server error")
)

// Convenience functions for common errors
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, "VALIDATION", message)
}

func NewConflictError(code, message string) *AppError {
	return New(ErrorTypeConflict, code, message)
}

func NewNotFoundError(code, message string) *AppError {
	return New(ErrorTypeNotFound, code, message)
}

func NewEmptyResponseError(operation string) *AppError {
	return New(ErrorTypeResponse, CodeEmptyResponse, ErrEmptyResponse.Message).
		WithContext("operation", operation)
}

func NewSchemaViolationError(err error, operation string) *AppError {
	return Wrap(err, ErrorTypeResponse, CodeSchemaViolation, ErrSchemaViolation.Message).
		WithContext("operation", operation)
}

func NewExternalAPIError(err error, code, message, api string) *AppError {
	return Wrap(err, ErrorTypeExternal, code, message).
		WithContext("api", api)
}

func NewCredentialError(err error, code, message string) *AppError {
	return Wrap(err, ErrorTypeCredential, code, message)
}

func NewTimeoutError(err error, operation string) *AppError {
	return Wrap(err, ErrorTypeTimeout, CodeTimeout, ErrTimeout.Message).
		WithContext("operation", operation)
}

func NewInternalError(err error) *AppError {
	return Wrap(err, ErrorTypeInternal, "INTERNAL", "Internal server error")
}
