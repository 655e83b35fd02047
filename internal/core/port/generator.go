package port

import (
	"context"

	"github.com/querygate/querygate/internal/core/domain"
)

// SQLGenerator turns a natural-language question into candidate SQL text.
// The output is untrusted by contract: whatever comes back goes through the
// safety gate before anything touches the database.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question, schemaContext string, lang domain.Language) (string, error)
}
