package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Descriptor validation errors
	ErrCodeNotSpecified       ErrorCode = "NOT_SPECIFIED"
	ErrCodeInvalidPort        ErrorCode = "INVALID_PORT"
	ErrCodeInvalidTunnelSpec  ErrorCode = "INVALID_TUNNEL_SPEC"
	ErrCodeConflictingOptions ErrorCode = "CONFLICTING_OPTIONS"

	// Credential errors
	ErrCodeIdentityFileNotFound ErrorCode = "IDENTITY_FILE_NOT_FOUND"
	ErrCodeMissingCredentials   ErrorCode = "MISSING_CREDENTIALS"
	ErrCodeInvalidIdentity      ErrorCode = "INVALID_IDENTITY"

	// Coordination errors
	ErrCodeAlreadyRunning        ErrorCode = "ALREADY_RUNNING"
	ErrCodeBusy                  ErrorCode = "BUSY"
	ErrCodeDoubleAcquire         ErrorCode = "DOUBLE_ACQUIRE"
	ErrCodeReleaseWithoutAcquire ErrorCode = "RELEASE_WITHOUT_ACQUIRE"
	ErrCodeKillFailed            ErrorCode = "KILL_FAILED"

	// Command execution errors
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// HopError represents a structured error with context
type HopError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *HopError) Error() string {
	msg := e.Message
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap implements the errors.Unwrap interface
func (e *HopError) Unwrap() error {
	return e.Cause
}

// Is lets the standard library's errors.Is match on error codes:
// errors.Is(err, errors.New(errors.ErrCodeBusy, "")) is true for any BUSY error.
func (e *HopError) Is(target error) bool {
	t, ok := target.(*HopError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail to the error
func (e *HopError) WithDetail(key string, value interface{}) *HopError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *HopError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new HopError
func New(code ErrorCode, message string) *HopError {
	return &HopError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a HopError
func Wrap(err error, code ErrorCode, message string) *HopError {
	return &HopError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithOperation records which named operation failed. The code of the
// innermost HopError is kept so callers can still branch on it; plain
// errors become INTERNAL_ERROR.
func WithOperation(err error, op string) error {
	if err == nil {
		return nil
	}
	code := GetCode(err)
	if code == "" {
		code = ErrCodeInternal
	}
	if hopErr, ok := err.(*HopError); ok && hopErr.Operation == "" {
		hopErr.Operation = op
		return hopErr
	}
	return &HopError{
		Code:      code,
		Message:   "operation failed",
		Operation: op,
		Cause:     err,
	}
}

// Is checks if an error is a specific HopError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	hopErr, ok := err.(*HopError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if hopErr.Code == code {
		return true
	}
	return hopErr.Cause != nil && Is(hopErr.Cause, code)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	hopErr, ok := err.(*HopError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return hopErr.Code
}

// Details returns the details map of the first HopError in the chain.
func Details(err error) map[string]interface{} {
	for err != nil {
		if hopErr, ok := err.(*HopError); ok {
			return hopErr.Details
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = unwrapper.Unwrap()
	}
	return nil
}
