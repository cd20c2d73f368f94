package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode identifies a client-side failure. Values are stable across SDK languages.
type ErrorCode int

const (
	CodeGeneric              ErrorCode = -1
	CodeUnserializeFailed    ErrorCode = -2
	CodeFormatNotSupported   ErrorCode = -3
	CodeUploadNotSupported   ErrorCode = -4
	CodeConnectionFailed     ErrorCode = -5
	CodeReadFailed           ErrorCode = -6
	CodeInvalidPartnerID     ErrorCode = -7
	CodeInvalidObjectType    ErrorCode = -8
	CodeInvalidObjectField   ErrorCode = -9
	CodeDownloadNotSupported ErrorCode = -10
	CodeDownloadInBatch      ErrorCode = -11
	CodeActionInBatch        ErrorCode = -12
	CodeInvalidEnumValue     ErrorCode = -13
)

var (
	// ErrTransport indicates a connection failure or a non-200 response.
	ErrTransport = errors.New("transport failed")
	// ErrFormatUnsupported indicates a response format other than XML or JSON.
	ErrFormatUnsupported = errors.New("format not supported")
	// ErrUnserialize indicates a payload that could not be parsed.
	ErrUnserialize = errors.New("failed to unserialize server result")
	// ErrInvalidObjectType indicates a decoded value that does not match its expected type.
	ErrInvalidObjectType = errors.New("invalid object type")
	// ErrInvalidEnumValue indicates a value outside the declared enum constants.
	ErrInvalidEnumValue = errors.New("invalid enum value")
	// ErrActionInBatch indicates a batch-incompatible action queued in batch mode.
	ErrActionInBatch = errors.New("action not supported as part of multi-request")
)

// ClientError is raised by the SDK runtime itself, as opposed to the server.
type ClientError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Errorf builds a ClientError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *ClientError {
	return &ClientError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a ClientError around cause.
func Wrap(code ErrorCode, cause error, message string) *ClientError {
	return &ClientError{Code: code, Message: message, Cause: cause}
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that corresponds to the error code.
func (e *ClientError) Is(target error) bool {
	switch e.Code {
	case CodeConnectionFailed, CodeReadFailed:
		return target == ErrTransport
	case CodeFormatNotSupported:
		return target == ErrFormatUnsupported
	case CodeUnserializeFailed:
		return target == ErrUnserialize
	case CodeInvalidObjectType:
		return target == ErrInvalidObjectType
	case CodeInvalidEnumValue:
		return target == ErrInvalidEnumValue
	case CodeActionInBatch:
		return target == ErrActionInBatch
	}
	return false
}

// APIError is an application error reported by the server.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Args    map[string]string `json:"args,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	names := make([]string, 0, len(e.Args))
	for name := range e.Args {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+e.Args[name])
	}
	return fmt.Sprintf("%s (%s) [%s]", e.Message, e.Code, strings.Join(pairs, ", "))
}

// Arg returns a named error argument, or "" when absent.
func (e *APIError) Arg(name string) string {
	if e == nil || e.Args == nil {
		return ""
	}
	return e.Args[name]
}

// AsAPIError extracts an *APIError from err or from a batch result value.
func AsAPIError(v any) (*APIError, bool) {
	switch t := v.(type) {
	case *APIError:
		return t, t != nil
	case error:
		var apiErr *APIError
		if errors.As(t, &apiErr) {
			return apiErr, true
		}
	}
	return nil, false
}
