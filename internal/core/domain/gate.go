package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedKeywords are rejected as standalone case-insensitive tokens.
// Whole-word matching only: an identifier that merely contains one of these
// (e.g. a column named status_update) must not be rejected.
var blockedKeywords = []string{
	// data modification
	"delete", "update", "insert", "merge", "upsert", "replace",
	// data definition
	"drop", "alter", "create", "truncate", "rename",
	// permissions
	"grant", "revoke", "deny",
	// transaction control
	"commit", "rollback", "savepoint",
	// administration
	"vacuum", "analyze", "reindex", "cluster",
	// procedural execution
	"exec", "execute", "call", "prepare", "do",
	// bulk / system operations
	"copy", "pg_dump", "pg_restore", "load",
	// file access
	"pg_read_file", "pg_write_file", "pg_ls_dir", "lo_import", "lo_export", "load_file",
	// role management
	"createuser", "dropuser", "createrole", "droprole",
	// timing probes
	"pg_sleep", "sleep", "benchmark", "waitfor",
	// catalog probing
	"information_schema", "pg_catalog", "pg_shadow", "pg_authid",
	// remote execution
	"dblink",
}

// blockedPattern pairs a structural danger detector with the label reported
// in the verdict.
type blockedPattern struct {
	label string
	re    *regexp.Regexp
}

var blockedPatterns = []blockedPattern{
	{"line comment --", regexp.MustCompile(`--`)},
	{"block comment /*", regexp.MustCompile(`/\*`)},
	{"block comment */", regexp.MustCompile(`\*/`)},
	{"into outfile", regexp.MustCompile(`(?i)\binto\s+outfile\b`)},
	{"into dumpfile", regexp.MustCompile(`(?i)\binto\s+dumpfile\b`)},
	{"pg_sleep call", regexp.MustCompile(`(?i)\bpg_sleep\s*\(`)},
	{"sleep call", regexp.MustCompile(`(?i)\bsleep\s*\(`)},
	{"benchmark call", regexp.MustCompile(`(?i)\bbenchmark\s*\(`)},
	{"waitfor delay", regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`)},
	{"load_file call", regexp.MustCompile(`(?i)\bload_file\s*\(`)},
	{"xp_cmdshell", regexp.MustCompile(`(?i)\bxp_cmdshell\b`)},
	{"sp_executesql", regexp.MustCompile(`(?i)\bsp_executesql\b`)},
	{"dbms_ package call", regexp.MustCompile(`(?i)\bdbms_\w+`)},
	{"utl_ package call", regexp.MustCompile(`(?i)\butl_\w+`)},
	{"stacked statement", regexp.MustCompile(`(?i);\s*(?:select|insert|update|delete|drop|create|grant)\b`)},
}

// GateConfig is the immutable configuration bundle the gate evaluates
// against. Build one with NewGateConfig and treat it as read-only; runtime
// changes go through Extend, which returns a fresh copy.
type GateConfig struct {
	MaxQueryLength int
	MaxRows        int

	keywords map[string]struct{}
	patterns []blockedPattern
}

const (
	DefaultMaxQueryLength = 2000
	DefaultMaxRows        = 200
)

// NewGateConfig returns a GateConfig carrying the built-in keyword and
// pattern blocklists and the given limits.
func NewGateConfig(maxQueryLength, maxRows int) *GateConfig {
	kw := make(map[string]struct{}, len(blockedKeywords))
	for _, k := range blockedKeywords {
		kw[k] = struct{}{}
	}
	return &GateConfig{
		MaxQueryLength: maxQueryLength,
		MaxRows:        maxRows,
		keywords:       kw,
		patterns:       blockedPatterns,
	}
}

// Extend returns a copy of the config with extra blocked keywords and
// patterns. The built-in sets can only grow, never shrink.
func (c *GateConfig) Extend(keywords []string, patterns []string) (*GateConfig, error) {
	next := &GateConfig{
		MaxQueryLength: c.MaxQueryLength,
		MaxRows:        c.MaxRows,
		keywords:       make(map[string]struct{}, len(c.keywords)+len(keywords)),
		patterns:       make([]blockedPattern, len(c.patterns), len(c.patterns)+len(patterns)),
	}
	for k := range c.keywords {
		next.keywords[k] = struct{}{}
	}
	copy(next.patterns, c.patterns)

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.ContainsAny(k, " \t\n") {
			return nil, fmt.Errorf("blocked keyword %q: must be a single word", k)
		}
		next.keywords[k] = struct{}{}
	}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("blocked pattern %q: %w", p, err)
		}
		next.patterns = append(next.patterns, blockedPattern{label: p, re: re})
	}
	return next, nil
}

// Verdict is the gate's decision for one candidate query. A rejection
// carries exactly one reason and the offending element where applicable.
type Verdict struct {
	Allowed bool
	Reason  RejectReason
	Detail  string
}

// Err returns nil for an accepting verdict and a *ValidationError otherwise.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return &ValidationError{Reason: v.Reason, Detail: v.Detail}
}

func accept() Verdict { return Verdict{Allowed: true} }

func reject(reason RejectReason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// Validate runs the candidate query through the fixed check sequence:
// length, statement form, blocked keywords, blocked patterns, multiple
// statements, table allow-list. The first failing check decides the
// verdict. Pure function over its inputs; safe for any number of
// concurrent callers.
//
// allowedTables holds lowercase bare table names (schema qualifiers are
// ignored during the check). Rejection is final for the candidate — the
// gate never repairs or rewrites.
func Validate(sql string, allowedTables map[string]struct{}, cfg *GateConfig) Verdict {
	if len(sql) > cfg.MaxQueryLength {
		return reject(ReasonQueryTooLong, fmt.Sprintf("%d > %d chars", len(sql), cfg.MaxQueryLength))
	}

	head := strings.ToLower(stripLeadingComments(sql))
	if !strings.HasPrefix(head, "select") && !strings.HasPrefix(head, "with") {
		return reject(ReasonNotASelect, "")
	}

	for _, tok := range tokenize(sql) {
		if _, blocked := cfg.keywords[tok]; blocked {
			return reject(ReasonBlockedKeyword, strings.ToUpper(tok))
		}
	}

	for _, p := range cfg.patterns {
		if p.re.MatchString(sql) {
			return reject(ReasonBlockedPattern, p.label)
		}
	}

	if hasTrailingStatement(sql) {
		return reject(ReasonMultipleStatements, "")
	}

	ctes := cteNames(sql)
	for _, table := range tableRefs(sql) {
		if _, ok := ctes[table]; ok {
			continue
		}
		if _, ok := allowedTables[table]; !ok {
			return reject(ReasonTableNotAllowed, table)
		}
	}

	return accept()
}

// stripLeadingComments removes leading whitespace and leading SQL comment
// tokens so the statement-form check sees the first real token. Comments
// elsewhere in the text are still caught by the pattern scan.
func stripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = strings.TrimSpace(s[nl+1:])
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+2:])
		default:
			return s
		}
	}
}
