package domain

import (
	"regexp"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Finalize rewrites an accepted query so its result size is bounded by
// maxRows. A query without an outermost LIMIT gets one appended; an
// outermost numeric LIMIT greater than maxRows is rewritten down in place;
// anything already within the cap is returned unchanged. Trailing statement
// terminators and surrounding whitespace are tolerated, and the function is
// idempotent: Finalize(Finalize(q, n), n) == Finalize(q, n).
//
// Only the outermost statement's LIMIT is authoritative; limits inside
// subqueries or CTEs are never touched. The rewrite locates the limit
// constant through the Postgres parse tree so it cannot confuse a LIMIT
// keyword inside a string literal or a nested query.
func Finalize(sql string, maxRows int) string {
	text := strings.TrimSpace(sql)
	for strings.HasSuffix(text, ";") {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}

	tree, err := pg_query.Parse(text)
	if err != nil || len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		// The gate is text-level, so text can pass it yet not parse.
		// Fall back to a conservative trailing-LIMIT rewrite.
		return finalizeByText(text, maxRows)
	}

	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil {
		return finalizeByText(text, maxRows)
	}

	limit := sel.GetLimitCount()
	if limit == nil {
		return appendLimit(text, maxRows)
	}

	c := limit.GetAConst()
	if c == nil || c.GetIsnull() || c.GetIval() == nil {
		// Non-constant limit (expression, LIMIT ALL): left as written.
		// The dispatcher's statement timeout still bounds cost.
		return text
	}

	if int(c.GetIval().GetIval()) <= maxRows {
		return text
	}
	return spliceLimit(text, int(c.GetLocation()), maxRows)
}

// spliceLimit replaces the integer literal starting at byte offset loc with
// maxRows, leaving the rest of the text byte-for-byte intact.
func spliceLimit(text string, loc, maxRows int) string {
	if loc < 0 || loc >= len(text) {
		return appendLimit(text, maxRows)
	}
	end := loc
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == loc {
		return text
	}
	return text[:loc] + strconv.Itoa(maxRows) + text[end:]
}

func appendLimit(text string, maxRows int) string {
	return text + " LIMIT " + strconv.Itoa(maxRows)
}

var trailingLimitRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)\s*$`)

// finalizeByText is the parse-failure fallback: only a trailing LIMIT is
// recognized and rewritten.
func finalizeByText(text string, maxRows int) string {
	m := trailingLimitRe.FindStringSubmatchIndex(text)
	if m == nil {
		return appendLimit(text, maxRows)
	}
	n, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil || n <= maxRows {
		return text
	}
	return text[:m[2]] + strconv.Itoa(maxRows) + text[m[3]:]
}
