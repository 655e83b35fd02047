package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/querygate/querygate/internal/core/domain"
)

// Catalog reads table metadata from the database catalog for the schema
// registry. Only the public schema is discovered; the allow-list works in
// bare table names.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) TableNames(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, queryTableNames)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *Catalog) Columns(ctx context.Context, table string) ([]domain.ColumnDef, error) {
	rows, err := c.pool.Query(ctx, queryColumns, table)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, err)
	}
	defer rows.Close()

	type rawColumn struct {
		def     domain.ColumnDef
		udtName string
		userDef bool
	}
	var raw []rawColumn
	for rows.Next() {
		var rc rawColumn
		if err := rows.Scan(&rc.def.Name, &rc.def.DataType, &rc.def.Nullable, &rc.def.Default, &rc.udtName, &rc.def.Comment); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		rc.userDef = rc.def.DataType == "USER-DEFINED"
		raw = append(raw, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns of %s: %w", table, err)
	}

	cols := make([]domain.ColumnDef, 0, len(raw))
	for _, rc := range raw {
		if rc.userDef {
			values, err := c.enumValues(ctx, rc.udtName)
			if err != nil {
				return nil, err
			}
			if len(values) > 0 {
				rc.def.DataType = "ENUM"
				rc.def.EnumValues = values
			}
		}
		cols = append(cols, rc.def)
	}
	return cols, nil
}

func (c *Catalog) enumValues(ctx context.Context, udtName string) ([]string, error) {
	rows, err := c.pool.Query(ctx, queryEnumValues, udtName)
	if err != nil {
		return nil, fmt.Errorf("reading enum %s: %w", udtName, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning enum label: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// SampleRows fetches up to limit rows from a table. The table name was
// verified against the catalog by the registry; it is still quoted here.
func (c *Catalog) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	sql := fmt.Sprintf(`SELECT * FROM public.%q LIMIT %d`, table, limit)
	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", table, err)
	}
	defer rows.Close()
	return collectRows(rows)
}
