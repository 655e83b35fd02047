package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// collectRows drains a result set into column-keyed maps, the shape the chat
// and query surfaces serialize to callers. Duplicate column names collapse to
// the last value; qualify or alias them in the query if both are needed.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	cols := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("decoding row %d: %w", len(out), err)
		}
		m := make(map[string]any, len(cols))
		for i := range cols {
			m[cols[i].Name] = vals[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("draining result set: %w", err)
	}
	return out, nil
}
