package inject

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/bronystylecrazy/ultraweave/inject"

type registryMetrics struct {
	resolves metric.Int64Counter
	rebinds  metric.Float64Histogram

	bound    metric.AddOption
	unbound  metric.AddOption
	failed   metric.AddOption
	badIndex metric.AddOption
}

func newRegistryMetrics(meter metric.Meter) *registryMetrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}
	fallback := noop.NewMeterProvider().Meter(meterName)
	resolves, err := meter.Int64Counter("ultraweave.resolve.calls",
		metric.WithDescription("Resolver calls by outcome."))
	if err != nil {
		resolves, _ = fallback.Int64Counter("ultraweave.resolve.calls")
	}
	rebinds, err := meter.Float64Histogram("ultraweave.rebind.duration",
		metric.WithDescription("Duration of registry rebind passes."),
		metric.WithUnit("s"))
	if err != nil {
		rebinds, _ = fallback.Float64Histogram("ultraweave.rebind.duration")
	}
	outcome := func(v string) metric.AddOption {
		return metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", v)))
	}
	return &registryMetrics{
		resolves: resolves,
		rebinds:  rebinds,
		bound:    outcome("bound"),
		unbound:  outcome("unbound"),
		failed:   outcome("failed"),
		badIndex: outcome("invalid_index"),
	}
}

func (m *registryMetrics) resolved(opt metric.AddOption) {
	m.resolves.Add(context.Background(), 1, opt)
}

func (m *registryMetrics) rebound(d time.Duration) {
	m.rebinds.Record(context.Background(), d.Seconds())
}
