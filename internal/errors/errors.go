// Package errors provides error codes for the analysis pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure across component boundaries.
type ErrorCode string

const (
	// General errors
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
	ErrInvalid       ErrorCode = "INVALID_INPUT"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Rendering pipeline
	ErrDegradedRendering   ErrorCode = "DEGRADED_RENDERING"
	ErrEmptyInput          ErrorCode = "EMPTY_INPUT"
	ErrShapingFailed       ErrorCode = "SHAPING_FAILED"
	ErrRasterizationFailed ErrorCode = "RASTERIZATION_FAILED"
	ErrCompositionFailed   ErrorCode = "COMPOSITION_FAILED"

	// Data sources
	ErrFontUnavailable      ErrorCode = "FONT_UNAVAILABLE"
	ErrStopwordsUnavailable ErrorCode = "STOPWORDS_UNAVAILABLE"

	// AI errors
	ErrAINotConfigured ErrorCode = "AI_NOT_CONFIGURED"
	ErrAIFailed        ErrorCode = "AI_FAILED"
	ErrAITimeout       ErrorCode = "AI_TIMEOUT"

	// Queue errors
	ErrQueueStopped ErrorCode = "QUEUE_STOPPED"
	ErrQueueFull    ErrorCode = "QUEUE_FULL"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether err, or any error it wraps, is an AppError with code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or ErrInternal when err carries none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
