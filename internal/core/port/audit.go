package port

import "context"

// AuditEntry represents a single auditable query event.
type AuditEntry struct {
	Source       string // "http", "mcp", or the tool name
	Question     string // natural-language question, empty for raw SQL calls
	Language     string
	SQL          string // candidate SQL as it reached the gate
	Rejected     bool
	RejectReason string
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
