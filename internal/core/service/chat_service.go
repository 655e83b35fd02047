package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ChatAnswer is the result of one natural-language question.
type ChatAnswer struct {
	RequestID string           `json:"request_id"`
	Question  string           `json:"question"`
	Language  domain.Language  `json:"language"`
	SQL       string           `json:"sql"`
	Rows      []map[string]any `json:"rows"`
}

// ChatService orchestrates a chat turn: detect the question's language,
// assemble schema context from the registry, obtain candidate SQL from the
// generator, strip model decoration, and hand the text to the query
// pipeline. The generator's output is never trusted — whatever it produces
// faces the same gate as a raw SQL call.
type ChatService struct {
	registry  *SchemaRegistry
	generator port.SQLGenerator
	queries   *QueryService
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewChatService(registry *SchemaRegistry, generator port.SQLGenerator, queries *QueryService, logger *slog.Logger, tracer trace.Tracer) *ChatService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &ChatService{
		registry:  registry,
		generator: generator,
		queries:   queries,
		logger:    logger,
		tracer:    tracer,
	}
}

// Ask answers one natural-language question. The returned answer carries the
// generated SQL even when execution failed, so callers can explain what was
// attempted; the error still reports the structured rejection or execution
// failure.
func (s *ChatService) Ask(ctx context.Context, question string) (*ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	ctx, span := s.tracer.Start(ctx, "ChatService.Ask")
	defer span.End()

	answer := &ChatAnswer{
		RequestID: uuid.NewString(),
		Question:  question,
		Language:  domain.DetectLanguage(question),
	}
	span.SetAttributes(
		attribute.String("chat.request_id", answer.RequestID),
		attribute.String("chat.language", string(answer.Language)),
	)

	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "schema context may be stale", slog.Any("error", err))
	}

	raw, err := s.generator.GenerateSQL(ctx, question, snap.SchemaContext(), answer.Language)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generating sql: %w", err)
	}

	answer.SQL = domain.ExtractSQL(raw)
	if answer.SQL == "" {
		return nil, fmt.Errorf("generator returned no sql")
	}

	s.logger.InfoContext(ctx, "chat question translated",
		slog.String("chat.request_id", answer.RequestID),
		slog.String("chat.language", string(answer.Language)),
		slog.String("db.statement", answer.SQL),
	)

	rows, err := s.queries.Execute(withQuestion(ctx, question, answer.Language), answer.SQL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return answer, err
	}

	answer.Rows = rows
	return answer, nil
}
