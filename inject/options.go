package inject

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultDiagnosticsLimit bounds the in-memory diagnostic log.
const DefaultDiagnosticsLimit = 256

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	logger     *zap.Logger
	meter      metric.Meter
	diagnostic int
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *registryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(c *registryConfig) {
		if meter != nil {
			c.meter = meter
		}
	}
}

// WithDiagnosticsLimit sets how many diagnostics are retained. Zero or less
// keeps the default.
func WithDiagnosticsLimit(n int) Option {
	return func(c *registryConfig) {
		if n > 0 {
			c.diagnostic = n
		}
	}
}
