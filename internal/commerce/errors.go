package commerce

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds matched with errors.Is against any *Error.
var (
	ErrBackendUnavailable = errors.New("commerce backend unavailable")
	ErrNotFound           = errors.New("commerce record not found")
	ErrValidation         = errors.New("commerce validation failed")
)

// Kind classifies a gateway failure.
type Kind uint8

const (
	// KindUnavailable covers transport failures, timeouts, an open breaker
	// and every non-2xx status not mapped to another kind.
	KindUnavailable Kind = iota
	// KindNotFound means the backend has no matching record.
	KindNotFound
	// KindValidation means the backend rejected the submitted data.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "backend_unavailable"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	default:
		return ErrBackendUnavailable
	}
}

// Error is the typed failure returned by every gateway operation.
type Error struct {
	Kind    Kind
	Op      string // gateway operation, e.g. "carts.list"
	Status  int    // HTTP status; 0 when no response was received
	Message string // backend-provided message, if any
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("commerce")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Code returns a machine-readable code used in handler summaries.
func (e *Error) Code() string {
	return "COMMERCE_" + strings.ToUpper(e.Kind.String())
}

func unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

func notFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func invalid(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}
