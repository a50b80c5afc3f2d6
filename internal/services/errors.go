package services

import (
	"errors"
	"fmt"
	"sort"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindTokenNotFound      Kind = "token_not_found"
	KindTokenExpired       Kind = "token_expired"
	KindTokenAlreadyUsed   Kind = "token_already_used"
	KindInvalidCode        Kind = "invalid_code"
	KindInvalidBackupCode  Kind = "invalid_backup_code"
	KindInvalidToken       Kind = "invalid_token"
	KindUpstream           Kind = "upstream_failure"
	KindInternal           Kind = "internal"
)

// Error is the single error type returned across the service boundary.
// Fields holds per-field validation messages keyed by request field name.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTokenExpired)
// works for errors built with a custom message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Authentication credentials were not provided"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "already exists"}
	ErrTokenNotFound      = &Error{Kind: KindTokenNotFound, Message: "Invalid reset token"}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired, Message: "Reset token has expired"}
	ErrTokenAlreadyUsed   = &Error{Kind: KindTokenAlreadyUsed, Message: "Reset token has already been used"}
	ErrInvalidCode        = &Error{Kind: KindInvalidCode, Message: "Invalid 2FA code"}
	ErrInvalidBackupCode  = &Error{Kind: KindInvalidBackupCode, Message: "Invalid backup code"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Message: "Invalid or expired token"}
	ErrUpstream           = &Error{Kind: KindUpstream, Message: "Failed to send password reset email"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "Internal server error"}
)

// ValidationError reports a single invalid field.
func ValidationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string][]string{field: {message}},
	}
}

// FieldErrors collects messages for several fields before failing once.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	message := f[fields[0]][0]
	return &Error{Kind: KindValidation, Message: message, Fields: map[string][]string(f)}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
