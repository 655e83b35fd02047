package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/querygate/querygate/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeError_DeadlineExceeded(t *testing.T) {
	t.Parallel()
	err := normalizeError(context.Background(), context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrExecutionTimeout)
}

func TestNormalizeError_ContextDeadline(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	// The driver often surfaces its own error while the real cause is the
	// expired context.
	err := normalizeError(ctx, errors.New("conn closed"))
	assert.ErrorIs(t, err, domain.ErrExecutionTimeout)
}

func TestNormalizeError_StatementTimeout(t *testing.T) {
	t.Parallel()
	pgErr := &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}
	err := normalizeError(context.Background(), pgErr)
	assert.ErrorIs(t, err, domain.ErrExecutionTimeout)
}

func TestNormalizeError_PgError(t *testing.T) {
	t.Parallel()
	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "ghosts" does not exist`}
	err := normalizeError(context.Background(), pgErr)

	var xErr *domain.ExecutionError
	require.ErrorAs(t, err, &xErr)
	assert.Equal(t, `relation "ghosts" does not exist`, xErr.Message)
	assert.NotErrorIs(t, err, domain.ErrExecutionTimeout)
}

func TestNormalizeError_GenericError(t *testing.T) {
	t.Parallel()
	err := normalizeError(context.Background(), errors.New("broken pipe"))

	var xErr *domain.ExecutionError
	require.ErrorAs(t, err, &xErr)
	assert.Equal(t, "broken pipe", xErr.Message)
}
