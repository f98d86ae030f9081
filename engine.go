// Package ultraweave wires the binding registry, the transformation driver and
// the host runtime into one engine, standalone or as an fx module.
package ultraweave

import (
	"fmt"
	"io"

	"github.com/bronystylecrazy/ultraweave/cfg"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/transform"
	"github.com/bronystylecrazy/ultraweave/vm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/bronystylecrazy/ultraweave"

// Engine is a registry, a driver and a machine whose class-loading hook is the
// driver and whose resolver is the registry.
type Engine struct {
	Registry *inject.Registry
	Driver   *transform.Driver
	Machine  *vm.Machine

	logger *zap.Logger
}

type engineOptions struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// EngineOption configures NewEngine.
type EngineOption func(*engineOptions)

func WithMeter(meter metric.Meter) EngineOption {
	return func(o *engineOptions) { o.meter = meter }
}

func WithTracer(tracer trace.Tracer) EngineOption {
	return func(o *engineOptions) { o.tracer = tracer }
}

// NewEngine builds an engine from c. Instruments default to the global otel
// providers.
func NewEngine(c cfg.Config, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := engineOptions{
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := inject.NewRegistry(
		inject.WithLogger(logger),
		inject.WithMeter(o.meter),
		inject.WithDiagnosticsLimit(c.Registry.DiagnosticsLimit),
	)
	driver := transform.NewDriver(registry,
		transform.WithLogger(logger),
		transform.WithTracer(o.tracer),
		transform.WithVerify(c.Transform.Verify),
	)
	machine := vm.New(
		vm.WithLogger(logger),
		vm.WithTransformer(driver.LoadHook()),
		vm.WithVerify(c.VM.Verify),
		vm.WithMaxDepth(c.VM.MaxDepth),
	)
	machine.UseResolver(registry)

	return &Engine{Registry: registry, Driver: driver, Machine: machine, logger: logger.Named("engine")}
}

// Rebind recomputes every binding and logs the outcome.
func (e *Engine) Rebind() inject.RebindReport {
	report := e.Registry.Rebind()
	e.logger.Info("rebound slots",
		zap.Int("types", report.Types),
		zap.Int("slots", report.Slots),
		zap.Int("bound", report.Bound),
		zap.Int("unbound", report.Unbound),
		zap.Int("ties", report.Ties),
	)
	return report
}

// RegisterTypeSpecs decodes YAML type specs from r and registers each one.
func (e *Engine) RegisterTypeSpecs(r io.Reader) ([]*inject.TypeDescriptor, error) {
	specs, err := inject.DecodeTypeSpecs(r)
	if err != nil {
		return nil, err
	}
	out := make([]*inject.TypeDescriptor, 0, len(specs))
	for _, spec := range specs {
		t, err := spec.Build()
		if err != nil {
			return nil, err
		}
		if _, err := e.Registry.RegisterType(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name(), err)
		}
		out = append(out, t)
	}
	return out, nil
}
