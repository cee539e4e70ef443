package match

import (
	"errors"
	"fmt"
)

// Kind classifies a matching failure.
type Kind string

const (
	KindInvalidPattern     Kind = "invalid_pattern"
	KindInvalidQuery       Kind = "invalid_query"
	KindEmbeddingFailure   Kind = "embedding_failure"
	KindSearchFailure      Kind = "search_failure"
	KindExplanationFailure Kind = "explanation_failure"
	KindPartialData        Kind = "partial_data"
)

// Error is returned by every matching operation. Err carries the upstream
// cause, including context.Canceled or context.DeadlineExceeded.
type Error struct {
	Kind    Kind
	Pattern Pattern
	Op      string
	Err     error
}

func (e *Error) Error() string {
	msg := "match: "
	if e.Pattern != "" {
		msg += "pattern " + string(e.Pattern) + ": "
	}
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Pattern == "" && t.Op == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidPattern     = &Error{Kind: KindInvalidPattern}
	ErrInvalidQuery       = &Error{Kind: KindInvalidQuery}
	ErrEmbeddingFailure   = &Error{Kind: KindEmbeddingFailure}
	ErrSearchFailure      = &Error{Kind: KindSearchFailure}
	ErrExplanationFailure = &Error{Kind: KindExplanationFailure}
	ErrPartialData        = &Error{Kind: KindPartialData}
)

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindInvalidPattern || k == KindInvalidQuery
}

func newError(kind Kind, p Pattern, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Pattern: p, Op: op, Err: fmt.Errorf(format, args...)}
}
