package port

import (
	"context"

	"github.com/querygate/querygate/internal/core/domain"
)

// CatalogReader exposes the database catalog queries the schema registry
// needs during a refresh. Implementations read only system views.
type CatalogReader interface {
	// TableNames lists base tables in the public schema.
	TableNames(ctx context.Context) ([]string, error)

	// Columns returns the column definitions for one table, with enum
	// values resolved for user-defined enum types.
	Columns(ctx context.Context, table string) ([]domain.ColumnDef, error)

	// SampleRows fetches up to limit rows as a data-shape hint for prompt
	// context. Failures are non-fatal to a refresh.
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)
}
