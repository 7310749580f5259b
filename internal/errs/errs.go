// Package errs defines the error taxonomy shared by every component of the
// chat service. Each failure class has a sentinel usable with errors.Is and a
// code that the transport layer maps to a response status.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeIdentity   = "IDENTITY"
	CodeSecret     = "SECRET"
	CodeStore      = "STORE"
	CodeCompletion = "COMPLETION"
	CodeValidation = "VALIDATION"
	CodeConfig     = "CONFIG"
)

// Sentinels for errors.Is checks. Every *Error created by the constructors
// below matches exactly one of them.
var (
	ErrIdentityResolutionFailed = errors.New("identity resolution failed")
	ErrSecretUnavailable        = errors.New("secret unavailable")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrCompletionFailed         = errors.New("completion failed")
	ErrValidation               = errors.New("validation failed")
	ErrConfig                   = errors.New("invalid configuration")
)

var sentinels = map[string]error{
	CodeIdentity:   ErrIdentityResolutionFailed,
	CodeSecret:     ErrSecretUnavailable,
	CodeStore:      ErrStoreUnavailable,
	CodeCompletion: ErrCompletionFailed,
	CodeValidation: ErrValidation,
	CodeConfig:     ErrConfig,
}

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error is a classified application error carrying an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is the sentinel of this error's class.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.code]
	return ok && target == sentinel
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

func NewIdentityError(message string, cause error) error {
	return newError(CodeIdentity, message, cause)
}

func NewSecretError(message string, cause error) error {
	return newError(CodeSecret, message, cause)
}

func NewStoreError(message string, cause error) error {
	return newError(CodeStore, message, cause)
}

func NewCompletionError(message string, cause error) error {
	return newError(CodeCompletion, message, cause)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}
