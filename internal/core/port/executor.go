package port

import "context"

// QueryExecutor runs finalized read-only SQL against the database. The ctx
// must cancel the query server-side when the caller gives up; failures come
// back as domain.ErrExecutionTimeout or *domain.ExecutionError, never as raw
// driver errors.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}
