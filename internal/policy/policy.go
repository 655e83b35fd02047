package policy

import (
	"fmt"

	"github.com/querygate/querygate/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled configuration loaded from a YAML file:
// extra gate blocklist entries (the built-in sets are immutable and only
// extendable), the table allow-list seed, and per-table context used for
// prompt building and result masking.
type Policy struct {
	Gate        GatePolicy             `yaml:"gate"`
	AllowTables []string               `yaml:"allow_tables"`
	Tables      map[string]TablePolicy `yaml:"tables"`
}

// GatePolicy extends the gate's built-in blocklists.
type GatePolicy struct {
	BlockedKeywords []string `yaml:"blocked_keywords"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

// TablePolicy provides a business description and column rules for a table.
type TablePolicy struct {
	Description string                  `yaml:"description"`
	Columns     map[string]ColumnPolicy `yaml:"columns"`
}

// ColumnPolicy holds a column's description and optional mask directive.
type ColumnPolicy struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts either a plain string (description only) or the
// full struct form.
func (cp *ColumnPolicy) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cp.Description = value.Value
		return nil
	}
	type alias ColumnPolicy
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column policy: %w", err)
	}
	*cp = ColumnPolicy(a)
	return nil
}

// Descriptions returns table name → business description.
func (p *Policy) Descriptions() map[string]string {
	out := make(map[string]string, len(p.Tables))
	for name, t := range p.Tables {
		if t.Description != "" {
			out[name] = t.Description
		}
	}
	return out
}

// Masks returns column name → mask type collected across all tables.
// Matching at query time is by bare column name.
func (p *Policy) Masks() map[string]domain.MaskType {
	out := make(map[string]domain.MaskType)
	for _, t := range p.Tables {
		for col, cp := range t.Columns {
			if cp.Mask != "" {
				out[col] = cp.Mask
			}
		}
	}
	return out
}
