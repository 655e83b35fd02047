package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ColumnDef describes one column of an allow-listed table.
type ColumnDef struct {
	Name       string   `json:"name"`
	DataType   string   `json:"data_type"`
	Nullable   bool     `json:"nullable"`
	Default    string   `json:"default,omitempty"`
	EnumValues []string `json:"enum_values,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// TableSchema is the discovered metadata for one table.
type TableSchema struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Columns     []ColumnDef      `json:"columns"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
}

// SchemaSnapshot is an immutable point-in-time view of table metadata plus
// the table allow-list. Snapshots are replaced wholesale, never mutated: an
// in-flight validation that captured one keeps a consistent view while a
// refresh installs its successor. Invariant: every allow-listed name has an
// entry in Tables.
type SchemaSnapshot struct {
	Tables     map[string]TableSchema
	Allowed    map[string]struct{}
	CapturedAt time.Time
}

// AllowedTables returns the snapshot's allow-list, or an empty set for a nil
// snapshot — no snapshot means no access (fail closed).
func (s *SchemaSnapshot) AllowedTables() map[string]struct{} {
	if s == nil {
		return map[string]struct{}{}
	}
	return s.Allowed
}

// WithAllowed returns a copy of the snapshot carrying a different
// allow-list. Tables absent from the new list are dropped so the
// "allow-list ⊆ tables" invariant holds. This is the unit of the atomic
// replace used for administrative allow-list changes.
func (s *SchemaSnapshot) WithAllowed(allowed map[string]struct{}) *SchemaSnapshot {
	next := &SchemaSnapshot{
		Tables:     make(map[string]TableSchema, len(allowed)),
		Allowed:    allowed,
		CapturedAt: s.CapturedAt,
	}
	for name := range allowed {
		if t, ok := s.Tables[name]; ok {
			next.Tables[name] = t
		}
	}
	return next
}

// TableNames returns the allow-listed table names in sorted order.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, 0, len(s.AllowedTables()))
	for name := range s.AllowedTables() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaContext renders the snapshot as the plain-text database description
// embedded in LLM prompts: tables, columns with types, enum value lists, and
// a couple of sample rows per table as a hint of real data shapes.
func (s *SchemaSnapshot) SchemaContext() string {
	var b strings.Builder
	b.WriteString("=== DATABASE SCHEMA ===\n")

	for _, name := range s.TableNames() {
		t := s.Tables[name]
		b.WriteString("\nTable: " + name + "\n")
		if t.Description != "" {
			b.WriteString("Description: " + t.Description + "\n")
		}
		b.WriteString("Columns:\n")
		for _, col := range t.Columns {
			b.WriteString("  - " + col.Name + ": ")
			if len(col.EnumValues) > 0 {
				b.WriteString("ENUM (values: " + strings.Join(col.EnumValues, ", ") + ")")
			} else {
				b.WriteString(col.DataType)
			}
			if !col.Nullable {
				b.WriteString(" NOT NULL")
			}
			if col.Comment != "" {
				b.WriteString(" -- " + col.Comment)
			}
			b.WriteByte('\n')
		}
		if len(t.SampleRows) > 0 {
			n := len(t.SampleRows)
			if n > 2 {
				n = 2
			}
			if data, err := json.Marshal(t.SampleRows[:n]); err == nil {
				b.WriteString("Sample data: " + string(data) + "\n")
			}
		}
	}
	return b.String()
}
