package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/querygate/querygate/internal/core/domain"
)

// pgQueryCanceled is the SQLSTATE raised when statement_timeout fires or a
// backend cancel request lands.
const pgQueryCanceled = "57014"

// Executor dispatches finalized SELECT text to the database. Each call runs
// in its own read-only transaction under both a context deadline and a
// server-side statement timeout, so an expensive query is cancelled even if
// the Go side goes away first. Driver failures are normalized into the
// domain error taxonomy — callers never see raw pgx errors.
type Executor struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewExecutor(pool *pgxpool.Pool, queryTimeout time.Duration) *Executor {
	return &Executor{pool: pool, queryTimeout: queryTimeout}
}

func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, normalizeError(ctx, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET LOCAL scopes the timeout to this transaction only.
	timeoutMS := e.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, normalizeError(ctx, err)
	}

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, normalizeError(ctx, err)
	}
	defer rows.Close()

	results, err := collectRows(rows)
	if err != nil {
		return nil, normalizeError(ctx, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, normalizeError(ctx, err)
	}

	return results, nil
}

// normalizeError maps driver-level failures onto the typed taxonomy:
// deadline and statement-timeout cancellations become ErrExecutionTimeout,
// everything else an ExecutionError carrying the driver message.
func normalizeError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrExecutionTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgQueryCanceled {
			return fmt.Errorf("%w: %s", domain.ErrExecutionTimeout, pgErr.Message)
		}
		return &domain.ExecutionError{Message: pgErr.Message, Err: err}
	}

	return &domain.ExecutionError{Message: err.Error(), Err: err}
}
