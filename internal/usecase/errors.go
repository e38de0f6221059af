package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Reasons reported alongside an ErrorCode.
const (
	ReasonEmptyQuestion      = "empty_question"
	ReasonQuestionTooLong    = "question_too_long"
	ReasonMetricsUnavailable = "metrics_unavailable"
)

// Error is a request the service refused. Pipeline failures never produce
// one; they are answered with status "error" instead.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return fmt.Sprintf("usecase: %s/%s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("usecase: %s/%s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code and reason of the first *Error in err's chain.
// ok is false for any other error.
func CodeOf(err error) (code ErrorCode, reason string, ok bool) {
	var uerr *Error
	if !errors.As(err, &uerr) {
		return "", "", false
	}
	return uerr.Code, uerr.Reason, true
}
