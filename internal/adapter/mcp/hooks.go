package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/querygate/querygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// callTracker correlates before/after hook invocations by request id.
type callTracker struct {
	calls sync.Map // id -> callState
}

type callState struct {
	start time.Time
	span  trace.Span
}

func (t *callTracker) begin(id any, span trace.Span) {
	t.calls.Store(id, callState{start: time.Now(), span: span})
}

// finish returns the elapsed time and span for a call, or zero values when
// the before hook never ran for this id.
func (t *callTracker) finish(id any) (time.Duration, trace.Span) {
	v, ok := t.calls.LoadAndDelete(id)
	if !ok {
		return 0, nil
	}
	state := v.(callState)
	return time.Since(state.start), state.span
}

// ToolCallHooks logs every tool call with its outcome and duration, records
// the request-duration metric, and wraps each call in an OTel span.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	tracker := &callTracker{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		var span trace.Span
		if tracer != nil {
			_, span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
			)
		}
		tracker.begin(id, span)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		duration, span := tracker.finish(id)

		isErr := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			isErr = true
		}

		level := slog.LevelInfo
		if isErr {
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "tool call",
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", req.Params.Name),
			slog.Duration("duration", duration),
			slog.Bool("error", isErr),
		)

		if inst != nil {
			inst.RecordRequestDuration(ctx, float64(duration.Milliseconds()))
		}

		if span != nil {
			if isErr {
				span.SetStatus(codes.Error, "tool returned error")
				span.RecordError(fmt.Errorf("tool %s returned error", req.Params.Name))
			}
			span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		duration, span := tracker.finish(id)

		if req, ok := message.(*mcp.CallToolRequest); ok {
			logger.LogAttrs(ctx, slog.LevelError, "tool call",
				slog.String("rpc.method", "tools/call"),
				slog.String("mcp.tool", req.Params.Name),
				slog.Duration("duration", duration),
				slog.Bool("error", true),
				slog.String("error.message", err.Error()),
			)
		}

		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
		}
	})

	return hooks
}
