package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/querygate/querygate/internal/core/service"
)

// Server metadata
const serverName = "querygate"

// Tool descriptions
const (
	descAsk = "Answer a natural-language question about the database. " +
		"The question may be in English or Hinglish (Hindi in Roman script). " +
		"The question is translated to a single SELECT, validated against the table allow-list " +
		"and SQL safety rules, capped to the server-side row limit, and executed read-only. " +
		"Returns the generated SQL together with the result rows."

	descAskParam = "The question to answer, in English or Hinglish"

	descQuery = "Execute a read-only SQL query and return results as a JSON array of objects. " +
		"Only single SELECT statements over allow-listed tables are accepted; " +
		"a server-side row limit and query timeout are enforced. " +
		"Use schema_context first to see the available tables and columns."

	descQueryParam = "SQL query to execute (a single SELECT statement)"

	descSchemaContext = "Return the current database schema context: allow-listed tables with their " +
		"columns, types, enum values, descriptions, and sample rows. " +
		"Call this before writing SQL so queries reference only real tables and columns."

	descListTables = "List the tables that queries are allowed to read. " +
		"Queries referencing any other table are rejected."
)

func RegisterTools(s *server.MCPServer, chat *service.ChatService, query *service.QueryService, registry *service.SchemaRegistry) {
	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription(descAsk),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description(descAskParam),
			),
		),
		askHandler(chat),
	)

	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQueryParam),
			),
		),
		queryHandler(query),
	)

	s.AddTool(
		mcp.NewTool("schema_context",
			mcp.WithDescription(descSchemaContext),
		),
		schemaContextHandler(registry),
	)

	s.AddTool(
		mcp.NewTool("list_allowed_tables",
			mcp.WithDescription(descListTables),
		),
		listAllowedTablesHandler(registry),
	)
}

func askHandler(chat *service.ChatService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, ok := request.GetArguments()["question"].(string)
		if !ok || question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		ctx = service.WithSource(ctx, "mcp:ask")
		answer, err := chat.Ask(ctx, question)
		if err != nil {
			// Surface the attempted SQL alongside the failure when available.
			if answer != nil && answer.SQL != "" {
				return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v (sql: %s)", err, answer.SQL)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		data, err := json.Marshal(answer)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func queryHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithSource(ctx, "mcp:query")
		results, err := query.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		data, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func schemaContextHandler(registry *service.SchemaRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := registry.Snapshot(ctx)
		if err != nil && snap == nil {
			return mcp.NewToolResultError(fmt.Sprintf("schema unavailable: %v", err)), nil
		}
		return mcp.NewToolResultText(snap.SchemaContext()), nil
	}
}

func listAllowedTablesHandler(registry *service.SchemaRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(registry.AllowedTables())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
