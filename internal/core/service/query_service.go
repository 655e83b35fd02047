package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type sourceKey struct{}

type questionKey struct{}

type questionInfo struct {
	question string
	language domain.Language
}

// WithSource returns a context carrying the request source (transport or
// tool name) for audit logging.
func WithSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, sourceKey{}, name)
}

func sourceFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey{}).(string); ok {
		return v
	}
	return ""
}

// withQuestion attaches the originating chat question so audit entries for
// the resulting SQL can be traced back to it. Raw SQL calls carry none.
func withQuestion(ctx context.Context, question string, lang domain.Language) context.Context {
	return context.WithValue(ctx, questionKey{}, questionInfo{question: question, language: lang})
}

func questionFromCtx(ctx context.Context) questionInfo {
	if v, ok := ctx.Value(questionKey{}).(questionInfo); ok {
		return v
	}
	return questionInfo{}
}

// QueryService runs candidate SQL through the non-bypassable pipeline:
// safety gate, row-cap finalizer, dispatcher. Every caller — chat
// orchestrator, raw query endpoint, MCP tool — goes through Execute; there
// is no side door to the executor.
type QueryService struct {
	registry *SchemaRegistry
	executor port.QueryExecutor
	auditor  port.QueryAuditor
	logger   *slog.Logger
	masks    map[string]domain.MaskType
	tracer   trace.Tracer
	inst     port.Instrumentation

	gate atomic.Pointer[domain.GateConfig]
}

func NewQueryService(registry *SchemaRegistry, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, gate *domain.GateConfig, masks map[string]domain.MaskType, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	s := &QueryService{
		registry: registry,
		executor: executor,
		auditor:  auditor,
		logger:   logger,
		masks:    masks,
		tracer:   tracer,
		inst:     inst,
	}
	s.gate.Store(gate)
	return s
}

// GateConfig returns the current gate configuration.
func (s *QueryService) GateConfig() *domain.GateConfig {
	return s.gate.Load()
}

// ReplaceGateConfig swaps in a new gate configuration wholesale. In-flight
// validations finish against the config they captured.
func (s *QueryService) ReplaceGateConfig(cfg *domain.GateConfig) {
	s.gate.Store(cfg)
}

// Execute validates the candidate SQL against the current allow-list and
// gate config, finalizes the row cap, and dispatches. Rejections come back
// as *domain.ValidationError with a single reason; the executor is never
// reached for a rejected candidate.
func (s *QueryService) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		// A stale snapshot (or none at all, which reads as an empty
		// allow-list) is the fail-closed answer to a refresh failure.
		s.logger.WarnContext(ctx, "schema refresh failed, serving last-good snapshot",
			slog.Bool("have_snapshot", snap != nil),
			slog.Any("error", err),
		)
	}

	cfg := s.gate.Load()
	verdict := domain.Validate(sql, snap.AllowedTables(), cfg)
	if !verdict.Allowed {
		s.logger.WarnContext(ctx, "query rejected by safety gate",
			slog.String("db.statement", sql),
			slog.String("reason", string(verdict.Reason)),
			slog.String("detail", verdict.Detail),
		)
		vErr := verdict.Err()
		span.RecordError(vErr)
		span.SetStatus(codes.Error, vErr.Error())
		s.inst.IncrementGateRejections(ctx, string(verdict.Reason))
		q := questionFromCtx(ctx)
		s.auditor.Record(ctx, port.AuditEntry{
			Source:       sourceFromCtx(ctx),
			Question:     q.question,
			Language:     string(q.language),
			SQL:          sql,
			Rejected:     true,
			RejectReason: string(verdict.Reason),
		})
		return nil, vErr
	}

	final := domain.Finalize(sql, cfg.MaxRows)
	span.SetAttributes(attribute.String("db.statement.finalized", final))

	start := time.Now()
	rows, err := s.executor.Execute(ctx, final)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))
	q := questionFromCtx(ctx)
	s.auditor.Record(ctx, port.AuditEntry{
		Source:       sourceFromCtx(ctx),
		Question:     q.question,
		Language:     string(q.language),
		SQL:          final,
		RowsReturned: len(rows),
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		if errors.Is(err, domain.ErrExecutionTimeout) {
			s.logger.WarnContext(ctx, "query timed out", slog.Int64("duration_ms", durationMS))
		}
		return nil, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(rows)))
	domain.MaskRows(rows, s.masks, domain.AliasMap(final))

	return rows, nil
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, port.AuditEntry) {}
func (noopAuditor) Close() error                            { return nil }
