package domain

import (
	"crypto/sha256"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// MaskType is a column masking strategy applied to result rows before they
// leave the service. The zero value means "no mask".
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// MaskValue transforms a single value. Masked values may change type
// (hash and partial always yield strings); MaskNull yields nil, which is
// indistinguishable from SQL NULL.
func MaskValue(value any, mask MaskType) any {
	if value == nil {
		return nil
	}
	switch mask {
	case MaskRedact:
		return "***"
	case MaskHash:
		sum := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return fmt.Sprintf("%x", sum)
	case MaskPartial:
		return partial(fmt.Sprintf("%v", value))
	case MaskNull:
		return nil
	default:
		return value
	}
}

// partial keeps the last four runes visible and stars the rest.
func partial(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	out := make([]rune, len(runes))
	for i := range out {
		if i < len(runes)-4 {
			out[i] = '*'
		} else {
			out[i] = runes[i]
		}
	}
	return string(out)
}

// MaskRows applies column masks to result rows in place. masks is keyed by
// bare column name; aliases maps original column name → output alias so a
// mask on "email" also covers `SELECT email AS contact`.
func MaskRows(rows []map[string]any, masks map[string]MaskType, aliases map[string]string) {
	if len(masks) == 0 {
		return
	}
	for _, row := range rows {
		for col, mask := range masks {
			key := col
			if alias, ok := aliases[col]; ok {
				key = alias
			}
			if val, exists := row[key]; exists {
				row[key] = MaskValue(val, mask)
			}
		}
	}
}

// AliasMap parses a SELECT statement and maps original column names to their
// AS aliases. Only plain column references count: an expression under an
// alias has no source column a mask key could name. Unparsable text yields
// an empty map — masking then falls back to bare column names.
func AliasMap(sql string) map[string]string {
	aliases := make(map[string]string)

	tree, err := pg_query.Parse(sql)
	if err != nil || len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		return aliases
	}
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil {
		return aliases
	}

	for _, target := range sel.GetTargetList() {
		rt := target.GetResTarget()
		if rt == nil || rt.GetName() == "" {
			continue
		}
		col := rt.GetVal().GetColumnRef()
		if col == nil || len(col.GetFields()) == 0 {
			continue
		}
		// Last field is the bare column; earlier fields qualify it.
		last := col.GetFields()[len(col.GetFields())-1]
		name := last.GetString_().GetSval()
		if name != "" && name != rt.GetName() {
			aliases[name] = rt.GetName()
		}
	}
	return aliases
}
