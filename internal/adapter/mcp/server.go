package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/querygate/querygate/internal/core/port"
	"github.com/querygate/querygate/internal/core/service"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, chat *service.ChatService, query *service.QueryService, registry *service.SchemaRegistry, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, chat, query, registry)

	return s
}
