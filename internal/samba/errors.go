package samba

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so callers can branch without inspecting message text.
type ErrorKind string

const (
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindAuth           ErrorKind = "authentication"
	ErrorKindHostKey        ErrorKind = "host_key"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindSessionDead    ErrorKind = "session_dead"
	ErrorKindParse          ErrorKind = "parse"
	ErrorKindUnknownRemote  ErrorKind = "unknown_remote"
	ErrorKindAlreadyExists  ErrorKind = "already_exists"
	ErrorKindNotFound       ErrorKind = "not_found"
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindPartialSuccess ErrorKind = "partial_success"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrNetwork        = errors.New("network error")
	ErrAuth           = errors.New("authentication failed")
	ErrHostKey        = errors.New("host key verification failed")
	ErrTimeout        = errors.New("command execution timed out")
	ErrSessionDead    = errors.New("session is no longer alive")
	ErrParse          = errors.New("unable to parse samba-tool output")
	ErrUnknownRemote  = errors.New("samba-tool reported an error")
	ErrAlreadyExists  = errors.New("object already exists")
	ErrNotFound       = errors.New("object not found")
	ErrValidation     = errors.New("invalid input")
	ErrPartialSuccess = errors.New("operation partially applied")
)

var kindSentinels = map[ErrorKind]error{
	ErrorKindNetwork:        ErrNetwork,
	ErrorKindAuth:           ErrAuth,
	ErrorKindHostKey:        ErrHostKey,
	ErrorKindTimeout:        ErrTimeout,
	ErrorKindSessionDead:    ErrSessionDead,
	ErrorKindParse:          ErrParse,
	ErrorKindUnknownRemote:  ErrUnknownRemote,
	ErrorKindAlreadyExists:  ErrAlreadyExists,
	ErrorKindNotFound:       ErrNotFound,
	ErrorKindValidation:     ErrValidation,
	ErrorKindPartialSuccess: ErrPartialSuccess,
}

// Error provides structured information about a failed session, command or directory operation.
type Error struct {
	Operation string    // The operation that failed
	Kind      ErrorKind // Error classification
	Message   string    // Human-readable message
	Command   string    // Redacted command line, if a remote command was involved
	ExitCode  int       // Remote exit code, if a remote command completed
	Stderr    string    // Raw remote stderr, if any
	Field     string    // Missing or invalid field for parse and validation errors
	Retryable bool      // Whether retrying on a fresh session could succeed
	Cause     error     // Underlying error
}

func (e *Error) Error() string {
	var parts []string

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("%s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field: %s", e.Field))
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" && stderr != e.Message {
		parts = append(parts, fmt.Sprintf("stderr: %s", stderr))
	}

	if e.Cause != nil && len(parts) == 0 {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, " - ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a classified error.
func NewError(operation string, kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Operation: operation,
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: kind == ErrorKindNetwork || kind == ErrorKindSessionDead || kind == ErrorKindTimeout,
	}
}

// NewValidationError reports invalid caller input detected before any remote call.
func NewValidationError(operation, field, message string) *Error {
	return &Error{
		Operation: operation,
		Kind:      ErrorKindValidation,
		Field:     field,
		Message:   message,
	}
}

// NewParseError reports remote output that is missing a required field or is malformed.
func NewParseError(operation, field, message string) *Error {
	return &Error{
		Operation: operation,
		Kind:      ErrorKindParse,
		Field:     field,
		Message:   message,
	}
}

// PartialSuccessError reports a composite operation that stopped after some steps had been applied remotely.
type PartialSuccessError struct {
	Operation string   // Composite operation name
	Completed []string // Steps applied before the failure, in order
	Failed    string   // Step that failed
	Cause     error    // Failure of the failed step
}

func (e *PartialSuccessError) Error() string {
	msg := fmt.Sprintf("%s partially applied: completed [%s], failed at %s",
		e.Operation, strings.Join(e.Completed, ", "), e.Failed)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialSuccessError) Unwrap() error {
	return e.Cause
}

func (e *PartialSuccessError) Is(target error) bool {
	return target == ErrPartialSuccess
}

// WrapError adds operation context to an error while preserving its kind.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var partial *PartialSuccessError
	if errors.As(err, &partial) {
		return err
	}

	var sambaErr *Error
	if errors.As(err, &sambaErr) {
		if sambaErr.Operation == "" {
			sambaErr.Operation = operation
		}
		return sambaErr
	}

	return &Error{
		Operation: operation,
		Kind:      ErrorKindUnknown,
		Message:   err.Error(),
		Cause:     err,
	}
}

// KindOf returns the kind of err, or ErrorKindUnknown for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	var partial *PartialSuccessError
	if errors.As(err, &partial) {
		return ErrorKindPartialSuccess
	}

	var sambaErr *Error
	if errors.As(err, &sambaErr) {
		return sambaErr.Kind
	}

	return ErrorKindUnknown
}

// IsRetryableError checks if an error could succeed on a fresh session.
func IsRetryableError(err error) bool {
	var sambaErr *Error
	if errors.As(err, &sambaErr) {
		return sambaErr.IsRetryable()
	}
	return false
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExistsError checks if an error indicates the object already exists.
func IsAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsSessionDeadError checks if the session must be re-established before continuing.
func IsSessionDeadError(err error) bool {
	return errors.Is(err, ErrSessionDead)
}

// IsValidationError checks if an error was raised by local input validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPartialSuccessError checks if a composite operation was partially applied.
func IsPartialSuccessError(err error) bool {
	return errors.Is(err, ErrPartialSuccess)
}
