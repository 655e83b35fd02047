package domain

import (
	"regexp"
	"strings"
)

var (
	fencedSQLRe    = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	lineCommentRe  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ExtractSQL pulls a runnable statement out of raw model output. Models
// routinely wrap SQL in markdown fences and append commentary, so the first
// fenced block wins when present. Comments and the trailing terminator are
// stripped before the text reaches the gate; comment markers that survive
// (inside string literals, say) are still rejected there.
func ExtractSQL(raw string) string {
	text := strings.TrimSpace(raw)

	if m := fencedSQLRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	text = lineCommentRe.ReplaceAllString(text, "")
	text = blockCommentRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	for strings.HasSuffix(text, ";") {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}
	return text
}
