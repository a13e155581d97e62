package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// pipelineMetrics counts pipeline outcomes. Instruments come from the
// global provider, which is a no-op until uptrace configures one.
type pipelineMetrics struct {
	plansCreated metric.Int64Counter
	itemsSkipped metric.Int64Counter
	dispatches   metric.Int64Counter
	results      metric.Int64Counter
	poisoned     metric.Int64Counter
}

var metrics = newPipelineMetrics()

func newPipelineMetrics() pipelineMetrics {
	meter := otel.Meter("matchday-pipeline/internal/usecase")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			otel.Handle(err)
		}
		return c
	}
	return pipelineMetrics{
		plansCreated: counter("pipeline.plans.created", "match plans created by the lock window"),
		itemsSkipped: counter("pipeline.items.skipped", "batch items skipped, by stage and reason"),
		dispatches:   counter("pipeline.dispatches", "worker triggers, by outcome"),
		results:      counter("pipeline.results", "result commits, by outcome"),
		poisoned:     counter("pipeline.fixtures.poisoned", "fixtures marked failed by the watchdog"),
	}
}

func (m pipelineMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
