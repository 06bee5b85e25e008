// Package apperr holds the error taxonomy shared by the auth, event and http
// packages. Every error carries a Kind so callers can branch with errors.Is
// without caring which component raised it.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindAuth             Kind = "AUTH"
	KindStore            Kind = "STORE"
	KindNotAuthenticated Kind = "NOT_AUTHENTICATED"
)

// Error is the structured error type. Fields is only set for validation
// errors and maps a form field to a user-facing message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string
	Cause   error
}

// ErrNotAuthenticated is returned by mutations attempted without a principal.
var ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated, Message: "not authenticated"}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Fields[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotAuthenticated)
// and errors.Is(err, &apperr.Error{Kind: apperr.KindStore}) both work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func NewValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

func NewAuthError(op string, cause error) *Error {
	return &Error{Kind: KindAuth, Op: op, Cause: cause}
}

func NewStoreError(op string, cause error) *Error {
	return &Error{Kind: KindStore, Op: op, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldsOf returns the validation fields carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Fields
	}
	return nil
}

// Wrapf is fmt.Errorf with the op prefixed, used where a plain wrap is enough.
func Wrapf(op string, err error, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), err)
}
