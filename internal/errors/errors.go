// Package errors provides unified error handling with structured error codes.
// Codes map onto gRPC status codes so the health surface and logs share one vocabulary.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode classifies a failure.
type ErrorCode int

const (
	ErrorCodeUnspecified ErrorCode = iota
	Unknown
	Internal
	InvalidArgument
	Unavailable
	Timeout
	Cancelled
	CaptureFailed
	CaptureEmpty
	OCRInitFailed
	OCRExtractFailed
	OCRInvalidImage
	AudioInitFailed
	AudioSessionFailed
	AudioUnsupported
	RulesInvalid
	ConfigInvalid
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnspecified: "ERROR_CODE_UNSPECIFIED",
	Unknown:              "UNKNOWN",
	Internal:             "INTERNAL",
	InvalidArgument:      "INVALID_ARGUMENT",
	Unavailable:          "UNAVAILABLE",
	Timeout:              "TIMEOUT",
	Cancelled:            "CANCELLED",
	CaptureFailed:        "CAPTURE_FAILED",
	CaptureEmpty:         "CAPTURE_EMPTY",
	OCRInitFailed:        "OCR_INIT_FAILED",
	OCRExtractFailed:     "OCR_EXTRACT_FAILED",
	OCRInvalidImage:      "OCR_INVALID_IMAGE",
	AudioInitFailed:      "AUDIO_INIT_FAILED",
	AudioSessionFailed:   "AUDIO_SESSION_FAILED",
	AudioUnsupported:     "AUDIO_UNSUPPORTED",
	RulesInvalid:         "RULES_INVALID",
	ConfigInvalid:        "CONFIG_INVALID",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// grpcCodeMap maps ErrorCode to gRPC status codes.
var grpcCodeMap = map[ErrorCode]codes.Code{
	ErrorCodeUnspecified: codes.Unknown,
	Unknown:              codes.Unknown,
	Internal:             codes.Internal,
	InvalidArgument:      codes.InvalidArgument,
	Unavailable:          codes.Unavailable,
	Timeout:              codes.DeadlineExceeded,
	Cancelled:            codes.Canceled,
	CaptureFailed:        codes.Unavailable,
	CaptureEmpty:         codes.InvalidArgument,
	OCRInitFailed:        codes.Unavailable,
	OCRExtractFailed:     codes.Internal,
	OCRInvalidImage:      codes.InvalidArgument,
	AudioInitFailed:      codes.Unavailable,
	AudioSessionFailed:   codes.Internal,
	AudioUnsupported:     codes.Unimplemented,
	RulesInvalid:         codes.InvalidArgument,
	ConfigInvalid:        codes.InvalidArgument,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     ErrorCode
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError recognise an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or Unknown.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, AudioInitFailed, OCRInitFailed, CaptureFailed:
		return true
	default:
		return false
	}
}
