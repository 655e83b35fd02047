package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/service"
)

// envelope is the uniform response shape. Success responses carry Data;
// failures carry ErrorCode and a human-readable Error. Gate rejections map
// their RejectReason straight into ErrorCode so clients can branch on it.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

func dataEnvelope(data any) envelope {
	return envelope{Success: true, Data: data}
}

func errorEnvelope(code, msg string) envelope {
	return envelope{Success: false, ErrorCode: code, Error: msg}
}

type chatRequest struct {
	Question string `json:"question" binding:"required"`
}

type queryRequest struct {
	SQL string `json:"sql" binding:"required"`
}

type addTableRequest struct {
	Table string `json:"table" binding:"required"`
}

type queryResult struct {
	SQL  string           `json:"sql"`
	Rows []map[string]any `json:"rows"`
}

// Handlers exposes the chat and query services over HTTP.
type Handlers struct {
	chat     *service.ChatService
	queries  *service.QueryService
	registry *service.SchemaRegistry
	logger   *slog.Logger
}

func NewHandlers(chat *service.ChatService, queries *service.QueryService, registry *service.SchemaRegistry, logger *slog.Logger) *Handlers {
	return &Handlers{
		chat:     chat,
		queries:  queries,
		registry: registry,
		logger:   logger,
	}
}

// handleChat answers a natural-language question. A gate rejection of the
// generated SQL still returns the SQL that was attempted.
func (h *Handlers) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope("BAD_REQUEST", "question is required"))
		return
	}

	ctx := service.WithSource(c.Request.Context(), "http:chat")
	answer, err := h.chat.Ask(ctx, req.Question)
	if err != nil {
		status, code := classify(err)
		env := errorEnvelope(code, err.Error())
		if answer != nil {
			// The generated SQL is part of the explanation of what failed.
			env.Data = answer
		}
		c.JSON(status, env)
		return
	}

	c.JSON(http.StatusOK, dataEnvelope(answer))
}

// handleQuery runs raw candidate SQL through the same pipeline as chat.
func (h *Handlers) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope("BAD_REQUEST", "sql is required"))
		return
	}

	ctx := service.WithSource(c.Request.Context(), "http:query")
	rows, err := h.queries.Execute(ctx, req.SQL)
	if err != nil {
		status, code := classify(err)
		c.JSON(status, errorEnvelope(code, err.Error()))
		return
	}

	c.JSON(http.StatusOK, dataEnvelope(queryResult{SQL: req.SQL, Rows: rows}))
}

// handleSchema returns the rendered schema context for the current snapshot.
func (h *Handlers) handleSchema(c *gin.Context) {
	snap, err := h.registry.Snapshot(c.Request.Context())
	if err != nil && snap == nil {
		c.JSON(http.StatusServiceUnavailable, errorEnvelope("SCHEMA_UNAVAILABLE", err.Error()))
		return
	}
	c.JSON(http.StatusOK, dataEnvelope(gin.H{
		"schema_context": snap.SchemaContext(),
		"tables":         snap.TableNames(),
		"captured_at":    snap.CapturedAt,
	}))
}

func (h *Handlers) handleListTables(c *gin.Context) {
	c.JSON(http.StatusOK, dataEnvelope(gin.H{"tables": h.registry.AllowedTables()}))
}

func (h *Handlers) handleAddTable(c *gin.Context) {
	var req addTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope("BAD_REQUEST", "table is required"))
		return
	}

	if err := h.registry.AddTable(c.Request.Context(), req.Table); err != nil {
		if errors.Is(err, service.ErrUnknownTable) {
			c.JSON(http.StatusNotFound, errorEnvelope("UNKNOWN_TABLE", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorEnvelope("INTERNAL", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dataEnvelope(gin.H{"tables": h.registry.AllowedTables()}))
}

func (h *Handlers) handleRemoveTable(c *gin.Context) {
	if err := h.registry.RemoveTable(c.Param("table")); err != nil {
		if errors.Is(err, service.ErrTableNotListed) {
			c.JSON(http.StatusNotFound, errorEnvelope("TABLE_NOT_LISTED", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorEnvelope("INTERNAL", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dataEnvelope(gin.H{"tables": h.registry.AllowedTables()}))
}

func (h *Handlers) handleRefreshSchema(c *gin.Context) {
	snap, err := h.registry.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorEnvelope("SCHEMA_REFRESH_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, dataEnvelope(gin.H{
		"tables":      snap.TableNames(),
		"captured_at": snap.CapturedAt,
	}))
}

func (h *Handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// classify maps pipeline errors to an HTTP status and stable error code.
func classify(err error) (int, string) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, string(vErr.Reason)
	}
	if errors.Is(err, domain.ErrExecutionTimeout) {
		return http.StatusGatewayTimeout, "EXECUTION_TIMEOUT"
	}
	var xErr *domain.ExecutionError
	if errors.As(err, &xErr) {
		return http.StatusBadGateway, "EXECUTION_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}
