package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock QueryExecutor ---

type mockExecutor struct {
	executeCalled bool
	lastSQL       string
	result        []map[string]any
	err           error
}

func (m *mockExecutor) Execute(_ context.Context, sql string) ([]map[string]any, error) {
	m.executeCalled = true
	m.lastSQL = sql
	return m.result, m.err
}

// --- recording auditor ---

type recordingAuditor struct {
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, entry port.AuditEntry) {
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) Close() error { return nil }

func newTestRegistry(t *testing.T, tables ...string) *SchemaRegistry {
	t.Helper()
	reg := NewSchemaRegistry(newMockCatalog(tables...), time.Minute, tables, nil, testLogger())
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	return reg
}

func newTestQueryService(t *testing.T, exec *mockExecutor, auditor port.QueryAuditor) *QueryService {
	t.Helper()
	gate := domain.NewGateConfig(domain.DefaultMaxQueryLength, domain.DefaultMaxRows)
	return NewQueryService(newTestRegistry(t, "users"), exec, auditor, testLogger(), gate, nil, nil, nil)
}

// --- tests ---

func TestQueryService_ValidSelect(t *testing.T) {
	exec := &mockExecutor{result: []map[string]any{{"id": 1, "name": "alice"}}}
	svc := newTestQueryService(t, exec, nil)

	rows, err := svc.Execute(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["name"])
}

func TestQueryService_AppendsRowCap(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestQueryService(t, exec, nil)

	_, err := svc.Execute(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users LIMIT 200", exec.lastSQL)
}

func TestQueryService_RewritesExcessiveLimit(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestQueryService(t, exec, nil)

	_, err := svc.Execute(context.Background(), "SELECT id FROM users LIMIT 99999")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users LIMIT 200", exec.lastSQL)
}

func TestQueryService_RejectionNeverReachesExecutor(t *testing.T) {
	cases := []struct {
		sql    string
		reason domain.RejectReason
	}{
		{"DELETE FROM users", domain.ReasonNotASelect},
		{"SELECT * FROM users; DROP TABLE users", domain.ReasonBlockedKeyword},
		{"SELECT * FROM users -- x", domain.ReasonBlockedPattern},
		{"SELECT * FROM orders", domain.ReasonTableNotAllowed},
	}
	for _, tc := range cases {
		exec := &mockExecutor{}
		svc := newTestQueryService(t, exec, nil)

		_, err := svc.Execute(context.Background(), tc.sql)
		require.Error(t, err, "for %q", tc.sql)

		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr, "for %q", tc.sql)
		assert.Equal(t, tc.reason, vErr.Reason, "for %q", tc.sql)
		assert.False(t, exec.executeCalled, "executor must not run for rejected queries: %q", tc.sql)
	}
}

func TestQueryService_ExecutionErrorPassesThrough(t *testing.T) {
	exec := &mockExecutor{err: domain.ErrExecutionTimeout}
	svc := newTestQueryService(t, exec, nil)

	_, err := svc.Execute(context.Background(), "SELECT id FROM users")
	assert.ErrorIs(t, err, domain.ErrExecutionTimeout)
}

func TestQueryService_AuditsAcceptedQuery(t *testing.T) {
	auditor := &recordingAuditor{}
	exec := &mockExecutor{result: []map[string]any{{"id": 1}}}
	svc := newTestQueryService(t, exec, auditor)

	ctx := WithSource(context.Background(), "test")
	_, err := svc.Execute(ctx, "SELECT id FROM users")
	require.NoError(t, err)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, "test", entry.Source)
	assert.Equal(t, "SELECT id FROM users LIMIT 200", entry.SQL, "audit records the finalized statement")
	assert.False(t, entry.Rejected)
	assert.Equal(t, 1, entry.RowsReturned)
}

func TestQueryService_AuditsRejectedQuery(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := newTestQueryService(t, &mockExecutor{}, auditor)

	_, err := svc.Execute(context.Background(), "SELECT * FROM orders")
	require.Error(t, err)

	require.Len(t, auditor.entries, 1)
	assert.True(t, auditor.entries[0].Rejected)
	assert.Equal(t, string(domain.ReasonTableNotAllowed), auditor.entries[0].RejectReason)
}

func TestQueryService_MasksConfiguredColumns(t *testing.T) {
	exec := &mockExecutor{result: []map[string]any{{"id": 1, "email": "alice@example.com"}}}
	gate := domain.NewGateConfig(domain.DefaultMaxQueryLength, domain.DefaultMaxRows)
	masks := map[string]domain.MaskType{"email": domain.MaskRedact}
	svc := NewQueryService(newTestRegistry(t, "users"), exec, nil, testLogger(), gate, masks, nil, nil)

	rows, err := svc.Execute(context.Background(), "SELECT id, email FROM users")
	require.NoError(t, err)
	assert.Equal(t, "***", rows[0]["email"])
	assert.Equal(t, 1, rows[0]["id"])
}

func TestQueryService_MasksAliasedColumns(t *testing.T) {
	exec := &mockExecutor{result: []map[string]any{{"contact": "alice@example.com"}}}
	gate := domain.NewGateConfig(domain.DefaultMaxQueryLength, domain.DefaultMaxRows)
	masks := map[string]domain.MaskType{"email": domain.MaskRedact}
	svc := NewQueryService(newTestRegistry(t, "users"), exec, nil, testLogger(), gate, masks, nil, nil)

	rows, err := svc.Execute(context.Background(), "SELECT email AS contact FROM users")
	require.NoError(t, err)
	assert.Equal(t, "***", rows[0]["contact"])
}

func TestQueryService_ReplaceGateConfig(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestQueryService(t, exec, nil)

	next, err := svc.GateConfig().Extend([]string{"unload"}, nil)
	require.NoError(t, err)
	svc.ReplaceGateConfig(next)

	_, err = svc.Execute(context.Background(), "SELECT unload FROM users")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.ReasonBlockedKeyword, vErr.Reason)
}

func TestQueryService_FailClosedWhenRegistryEmpty(t *testing.T) {
	// A registry that never managed a refresh exposes no tables at all.
	catalog := newMockCatalog()
	catalog.setError(errors.New("db down"))
	reg := NewSchemaRegistry(catalog, time.Minute, []string{"users"}, nil, testLogger())

	exec := &mockExecutor{}
	gate := domain.NewGateConfig(domain.DefaultMaxQueryLength, domain.DefaultMaxRows)
	svc := NewQueryService(reg, exec, nil, testLogger(), gate, nil, nil, nil)

	_, err := svc.Execute(context.Background(), "SELECT * FROM users")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.ReasonTableNotAllowed, vErr.Reason)
	assert.False(t, exec.executeCalled)
}
