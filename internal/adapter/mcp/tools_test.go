package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- port mocks ---

type mockCatalog struct {
	tables []string
}

func (m *mockCatalog) TableNames(context.Context) ([]string, error) {
	return m.tables, nil
}

func (m *mockCatalog) Columns(_ context.Context, _ string) ([]domain.ColumnDef, error) {
	return []domain.ColumnDef{{Name: "id", DataType: "integer"}}, nil
}

func (m *mockCatalog) SampleRows(context.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}

type mockExecutor struct {
	result  []map[string]any
	err     error
	lastSQL string // captures the SQL passed to Execute
}

func (m *mockExecutor) Execute(_ context.Context, sql string) ([]map[string]any, error) {
	m.lastSQL = sql
	return m.result, m.err
}

type mockGenerator struct {
	response string
	err      error
}

func (m *mockGenerator) GenerateSQL(context.Context, string, string, domain.Language) (string, error) {
	return m.response, m.err
}

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func setupServer(t *testing.T, gen *mockGenerator, executor *mockExecutor) *server.MCPServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := service.NewSchemaRegistry(&mockCatalog{tables: []string{"users"}}, time.Minute, []string{"users"}, nil, logger)
	_, err := registry.Refresh(context.Background())
	require.NoError(t, err)

	gate := domain.NewGateConfig(domain.DefaultMaxQueryLength, domain.DefaultMaxRows)
	querySvc := service.NewQueryService(registry, executor, nil, logger, gate, nil, nil, nil)
	chatSvc := service.NewChatService(registry, gen, querySvc, logger, nil)

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, chatSvc, querySvc, registry)
	return s
}

// --- tests ---

func TestQueryTool_HappyPath(t *testing.T) {
	executor := &mockExecutor{result: []map[string]any{{"id": 1, "name": "alice"}}}
	s := setupServer(t, &mockGenerator{}, executor)

	result := callTool(t, s, "query", map[string]any{"sql": "SELECT id, name FROM users"})
	require.False(t, result.IsError, "tool error: %s", toolText(result))

	assert.Equal(t, "SELECT id, name FROM users LIMIT 200", executor.lastSQL)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["name"])
}

func TestQueryTool_GateRejection(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(t, &mockGenerator{}, executor)

	result := callTool(t, s, "query", map[string]any{"sql": "DROP TABLE users"})
	require.True(t, result.IsError)
	assert.Contains(t, toolText(result), "NOT_A_SELECT")
	assert.Empty(t, executor.lastSQL, "rejected SQL never reaches the executor")
}

func TestQueryTool_MissingArgument(t *testing.T) {
	s := setupServer(t, &mockGenerator{}, &mockExecutor{})
	result := callTool(t, s, "query", map[string]any{})
	assert.True(t, result.IsError)
}

func TestAskTool_HappyPath(t *testing.T) {
	gen := &mockGenerator{response: "```sql\nSELECT count(*) FROM users\n```"}
	executor := &mockExecutor{result: []map[string]any{{"count": 2}}}
	s := setupServer(t, gen, executor)

	result := callTool(t, s, "ask", map[string]any{"question": "how many users are there?"})
	require.False(t, result.IsError, "tool error: %s", toolText(result))

	var answer service.ChatAnswer
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &answer))
	assert.Equal(t, "SELECT count(*) FROM users", answer.SQL)
	assert.Equal(t, domain.LanguageEnglish, answer.Language)
}

func TestAskTool_RejectedSQLReported(t *testing.T) {
	gen := &mockGenerator{response: "DELETE FROM users"}
	s := setupServer(t, gen, &mockExecutor{})

	result := callTool(t, s, "ask", map[string]any{"question": "remove everyone"})
	require.True(t, result.IsError)
	assert.Contains(t, toolText(result), "DELETE FROM users", "the attempted SQL is part of the explanation")
}

func TestSchemaContextTool(t *testing.T) {
	s := setupServer(t, &mockGenerator{}, &mockExecutor{})

	result := callTool(t, s, "schema_context", nil)
	require.False(t, result.IsError)
	assert.Contains(t, toolText(result), "Table: users")
}

func TestListAllowedTablesTool(t *testing.T) {
	s := setupServer(t, &mockGenerator{}, &mockExecutor{})

	result := callTool(t, s, "list_allowed_tables", nil)
	require.False(t, result.IsError)

	var tables []string
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &tables))
	assert.Equal(t, []string{"users"}, tables)
}
