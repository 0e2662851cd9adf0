package errors

import (
	stderrors "errors"
	"fmt"

	"grantlens/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Classify maps an error onto its code, recognizing the domain sentinels
// when no AppError wrapping happened along the way
func Classify(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	switch {
	case stderrors.Is(err, core.ErrInvalidAnalysisSpec):
		return CodeInvalidSpec
	case stderrors.Is(err, core.ErrMissingReference):
		return CodeMissingReference
	case stderrors.Is(err, core.ErrExternalService):
		return CodeExternalService
	case stderrors.Is(err, core.ErrUnresolvableGeography):
		return CodeUnresolvableGeography
	case stderrors.Is(err, core.ErrMalformedRecord), stderrors.Is(err, core.ErrMissingField):
		return CodeMalformedRecord
	case stderrors.Is(err, core.ErrInsufficientSample):
		return CodeInsufficientSample
	case stderrors.Is(err, core.ErrNotFound):
		return CodeNotFound
	}
	return CodeInternalError
}

// Predefined error codes
const (
	CodeConfigInvalid         = "CONFIG_INVALID"
	CodeMalformedRecord       = "MALFORMED_RECORD"
	CodeUnresolvableGeography = "UNRESOLVABLE_GEOGRAPHY"
	CodeMissingReference      = "MISSING_REFERENCE"
	CodeInsufficientSample    = "INSUFFICIENT_SAMPLE"
	CodeInvalidSpec           = "INVALID_ANALYSIS_SPEC"
	CodeExternalService       = "EXTERNAL_SERVICE_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeInternalError         = "INTERNAL_ERROR"
)

// ConfigInvalid flags a rejected configuration value
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}
