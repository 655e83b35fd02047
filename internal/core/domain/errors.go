package domain

import (
	"errors"
	"fmt"
)

// RejectReason identifies why the safety gate refused a candidate query.
// Exactly one reason is attached to a rejection.
type RejectReason string

const (
	ReasonQueryTooLong       RejectReason = "QUERY_TOO_LONG"
	ReasonNotASelect         RejectReason = "NOT_A_SELECT"
	ReasonBlockedKeyword     RejectReason = "BLOCKED_KEYWORD"
	ReasonBlockedPattern     RejectReason = "BLOCKED_PATTERN"
	ReasonMultipleStatements RejectReason = "MULTIPLE_STATEMENTS"
	ReasonTableNotAllowed    RejectReason = "TABLE_NOT_ALLOWED"
)

// ValidationError is the error form of a gate rejection. Detail carries the
// offending keyword, pattern, or table name where applicable, and nothing
// else — schema internals are never exposed through it.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("query rejected: %s", e.Reason)
	}
	return fmt.Sprintf("query rejected: %s (%s)", e.Reason, e.Detail)
}

var (
	// ErrSchemaRefreshFailed is returned by the registry when a catalog
	// refresh fails. The previous snapshot, if any, stays in service.
	ErrSchemaRefreshFailed = errors.New("schema refresh failed")

	// ErrExecutionTimeout is returned by the dispatcher when the statement
	// timeout or the caller's deadline cancels a query.
	ErrExecutionTimeout = errors.New("query execution timed out")
)

// ExecutionError wraps any driver-reported failure that is not a timeout.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
