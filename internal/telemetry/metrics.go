package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments bundles the service's application metrics.
type Instruments struct {
	queryCount      metric.Int64Counter
	queryDuration   metric.Float64Histogram
	queryErrors     metric.Int64Counter
	gateRejections  metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewInstruments creates the metric instruments on the global meter provider.
func NewInstruments(serviceName string) (*Instruments, error) {
	meter := otel.Meter(serviceName)

	queryCount, err := meter.Int64Counter("querygate.query.count",
		metric.WithDescription("Number of queries executed successfully"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query count counter: %w", err)
	}

	queryDuration, err := meter.Float64Histogram("querygate.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query duration histogram: %w", err)
	}

	queryErrors, err := meter.Int64Counter("querygate.query.errors",
		metric.WithDescription("Number of queries that failed at the database"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query errors counter: %w", err)
	}

	gateRejections, err := meter.Int64Counter("querygate.gate.rejections",
		metric.WithDescription("Number of candidates rejected by the safety gate, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gate rejections counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("querygate.request.duration",
		metric.WithDescription("End-to-end request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request duration histogram: %w", err)
	}

	return &Instruments{
		queryCount:      queryCount,
		queryDuration:   queryDuration,
		queryErrors:     queryErrors,
		gateRejections:  gateRejections,
		requestDuration: requestDuration,
	}, nil
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.queryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.queryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.queryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementGateRejections(ctx context.Context, reason string) {
	i.gateRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (i *Instruments) RecordRequestDuration(ctx context.Context, ms float64) {
	i.requestDuration.Record(ctx, ms)
}
