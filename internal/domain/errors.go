package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidArgument  Kind = "invalid_argument"
	KindNotFound         Kind = "not_found"
	KindInternal         Kind = "internal"
)

// Error is the canonical classified error returned by the quiz engine.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s", op, msg)
	case msg != "":
		return msg
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a classified error.
func NewError(kind Kind, op, message string, cause error) error {
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

// Invalid is shorthand for an InvalidArgument error with a formatted message.
func Invalid(op, format string, args ...any) error {
	return NewError(KindInvalidArgument, op, fmt.Sprintf(format, args...), nil)
}

// Internal wraps an infrastructure failure as an Internal error.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return NewError(KindInternal, op, "", err)
}

// KindOf extracts the error kind; unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	// ErrUnauthenticated is returned when no principal accompanies a call.
	ErrUnauthenticated = NewError(KindUnauthenticated, "", "authentication required", nil)
	// ErrNotMember is returned when the principal does not belong to the requested group.
	ErrNotMember = NewError(KindPermissionDenied, "", "not a member of this group", nil)
	// ErrNotOwner is returned when a personal quiz is accessed by someone other than its creator.
	ErrNotOwner = NewError(KindPermissionDenied, "", "quiz belongs to another user", nil)
	// ErrQuizNotFound indicates the quiz document does not exist.
	ErrQuizNotFound = NewError(KindNotFound, "", "quiz not found", nil)
	// ErrAttemptNotFound indicates the participant has no finished attempt in the archive.
	ErrAttemptNotFound = NewError(KindNotFound, "", "attempt not found", nil)
	// ErrWrongQuizType indicates the quiz variant does not match the requested scope.
	ErrWrongQuizType = NewError(KindInvalidArgument, "", "quiz type does not match requested scope", nil)
	// ErrRetriesExhausted is returned when a transact loop keeps losing the compare-and-swap.
	ErrRetriesExhausted = NewError(KindInternal, "", "transaction retry budget exhausted", nil)
	// ErrFinishIncomplete marks a committed finish whose archive or leaderboard write failed.
	ErrFinishIncomplete = NewError(KindInternal, "", "attempt finished but aggregation failed", nil)
)
