package domain

import (
	"regexp"
	"strings"
)

// tokenize splits SQL text into lowercase words delimited by anything that
// cannot appear inside an identifier. Digits, underscores and dollar signs
// stay attached so pg_read_file and status_update each stay one token.
func tokenize(sql string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(sql) {
		if r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// hasTrailingStatement reports whether a statement-separating semicolon
// outside any string literal is followed by further non-whitespace content.
// Semicolons inside single-quoted, double-quoted or dollar-quoted regions do
// not count; a lone trailing terminator is fine. Doubled quotes inside a
// literal are treated as escapes per SQL rules, and dollar quoting honors
// tags ($tag$ closes only at $tag$).
func hasTrailingStatement(sql string) bool {
	var inSingle, inDouble bool
	var dollarTag string
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case dollarTag != "":
			if strings.HasPrefix(sql[i:], dollarTag) {
				i += len(dollarTag) - 1
				dollarTag = ""
			}
		case inSingle:
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i++ // escaped quote
				} else {
					inSingle = false
				}
			}
		case inDouble:
			if c == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					i++
				} else {
					inDouble = false
				}
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '$':
			if tag := dollarQuoteRe.FindString(sql[i:]); tag != "" {
				dollarTag = tag
				i += len(tag) - 1
			}
		case c == ';':
			if strings.TrimSpace(sql[i+1:]) != "" {
				return true
			}
		}
	}
	return false
}

// ident matches a possibly quoted, possibly schema-qualified identifier.
const ident = `(?:"[^"]+"|[a-zA-Z_][a-zA-Z0-9_$]*)`

var (
	tableRefRe    = regexp.MustCompile(`(?i)\b(?:from|join)\s+(` + ident + `(?:\s*\.\s*` + ident + `)*)`)
	cteNameRe     = regexp.MustCompile(`(?i)(?:\bwith\s+(?:recursive\s+)?|,\s*)(` + ident + `)\s+as\s*\(`)
	lateralRe     = regexp.MustCompile(`(?i)\blateral\b`)
	leadIdentRe   = regexp.MustCompile(`^(?:"[^"]+"|[a-zA-Z_][a-zA-Z0-9_$]*)`)
	dollarQuoteRe = regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_]*\$|^\$\$`)
)

// fromClauseStops are the keywords that end a FROM relation list. Anything
// after one of these is no longer a comma-joined table name.
var fromClauseStops = map[string]struct{}{
	"where": {}, "group": {}, "order": {}, "having": {}, "limit": {},
	"offset": {}, "union": {}, "intersect": {}, "except": {}, "join": {},
	"inner": {}, "left": {}, "right": {}, "full": {}, "cross": {},
	"natural": {}, "on": {}, "using": {}, "window": {}, "fetch": {},
	"for": {}, "returning": {},
}

// tableRefs extracts the table names referenced by FROM and JOIN clauses,
// normalized to lowercase bare names (schema qualifiers and identifier
// quoting dropped). A FROM clause may list several comma-joined relations;
// every name in the list is extracted, not just the first. Subqueries and
// set-returning function calls contribute nothing — a name directly followed
// by "(" is a call, not a table.
func tableRefs(sql string) []string {
	text := lateralRe.ReplaceAllString(sql, " ")

	var refs []string
	for _, m := range tableRefRe.FindAllStringSubmatchIndex(text, -1) {
		ref := text[m[2]:m[3]]
		rest := strings.TrimLeft(text[m[3]:], " \t\r\n")
		if !strings.HasPrefix(rest, "(") {
			refs = append(refs, bareTableName(ref))
		}
		if strings.EqualFold(text[m[0]:m[0]+4], "from") {
			refs = append(refs, fromListTables(text[m[3]:])...)
		}
	}
	return refs
}

// fromListTables walks the comma-separated relation list that may follow the
// first FROM relation, returning the table name after each comma. Aliases
// are skipped, parenthesized groups (subqueries, function arguments) are
// passed over whole, and the walk stops at the first clause keyword.
func fromListTables(text string) []string {
	var refs []string
	i, n := 0, len(text)

	skipSpace := func() {
		for i < n {
			switch text[i] {
			case ' ', '\t', '\r', '\n':
				i++
			default:
				return
			}
		}
	}
	skipParens := func() {
		depth := 0
		for i < n {
			switch text[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					i++
					return
				}
			}
			i++
		}
	}
	readIdent := func() string {
		loc := leadIdentRe.FindStringIndex(text[i:])
		if loc == nil {
			return ""
		}
		id := text[i : i+loc[1]]
		i += loc[1]
		return id
	}

	for {
		skipSpace()
		if i >= n {
			return refs
		}
		switch {
		case text[i] == '(':
			skipParens()
		case text[i] == ',':
			i++
			skipSpace()
			if i < n && text[i] == '(' {
				skipParens()
				continue
			}
			ref := readIdent()
			if ref == "" {
				return refs
			}
			for {
				skipSpace()
				if i >= n || text[i] != '.' {
					break
				}
				i++
				skipSpace()
				next := readIdent()
				if next == "" {
					return refs
				}
				ref = next
			}
			if i < n && text[i] == '(' {
				skipParens()
				continue
			}
			refs = append(refs, bareTableName(ref))
		default:
			id := strings.ToLower(readIdent())
			if id == "" {
				return refs
			}
			if _, stop := fromClauseStops[id]; stop {
				return refs
			}
			// an alias (possibly introduced by AS); keep walking
		}
	}
}

// bareTableName reduces schema.table (possibly quoted) to the lowercase
// table part. Quoted names are lowered too: the allow-list stores lowercase
// names and the check is deliberately case-insensitive.
func bareTableName(ref string) string {
	parts := strings.Split(ref, ".")
	name := strings.TrimSpace(parts[len(parts)-1])
	name = strings.Trim(name, `"`)
	return strings.ToLower(name)
}

// cteNames collects names bound by WITH ... AS so common-table-expression
// references are not mistaken for disallowed tables.
func cteNames(sql string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, m := range cteNameRe.FindAllStringSubmatch(sql, -1) {
		names[bareTableName(m[1])] = struct{}{}
	}
	return names
}
