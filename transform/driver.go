// Package transform is the entry point the class-loading hook calls to
// rewrite a type before it is defined.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/locate"
	"github.com/bronystylecrazy/ultraweave/weave"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/bronystylecrazy/ultraweave/transform"

var ErrTypeMismatch = errors.New("descriptor does not describe class")

// TransformError is the hard failure surfaced to the loading hook. The type
// must not be defined when it is returned.
type TransformError struct {
	Type string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Type, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Driver orchestrates the locator and the weaver for one type at a time.
type Driver struct {
	registry *inject.Registry
	weaver   *weave.Weaver
	logger   *zap.Logger
	tracer   trace.Tracer
	verify   bool
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Driver) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithVerify runs bytecode.Verify over every rewritten body.
func WithVerify(enabled bool) Option {
	return func(d *Driver) { d.verify = enabled }
}

func WithWeaver(w *weave.Weaver) Option {
	return func(d *Driver) {
		if w != nil {
			d.weaver = w
		}
	}
}

// NewDriver builds a driver resolving descriptors through registry.
func NewDriver(registry *inject.Registry, opts ...Option) *Driver {
	d := &Driver{
		registry: registry,
		logger:   zap.NewNop(),
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		verify:   true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("transform")
	if d.weaver == nil {
		d.weaver = weave.New(weave.WithLogger(d.logger))
	}
	return d
}

// Transform rewrites raw for t. raw is never modified; on failure nothing is
// returned and t may be transformed again.
func (d *Driver) Transform(raw *bytecode.Class, t *inject.TypeDescriptor) (*bytecode.Class, error) {
	return d.TransformContext(context.Background(), raw, t)
}

// TransformContext is Transform with a parent context for tracing.
func (d *Driver) TransformContext(ctx context.Context, raw *bytecode.Class, t *inject.TypeDescriptor) (out *bytecode.Class, err error) {
	if raw == nil || t == nil {
		return nil, &TransformError{Err: errors.New("nil class or descriptor")}
	}
	_, span := d.tracer.Start(ctx, "ultraweave.transform", trace.WithAttributes(
		attribute.String("ultraweave.type", t.Name()),
		attribute.Int("ultraweave.slots", t.SlotCount()),
	))
	log := d.logger.With(zap.String("transform_id", uuid.NewString()), zap.String("type", t.Name()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("transform failed", zap.Error(err))
		}
		span.End()
	}()

	fail := func(err error) (*bytecode.Class, error) {
		return nil, &TransformError{Type: t.Name(), Err: err}
	}
	if raw.Name != t.Name() {
		return fail(fmt.Errorf("%w: class %s", ErrTypeMismatch, raw.Name))
	}
	if !t.Registered() {
		return fail(inject.ErrNotRegistered)
	}
	if weave.IsWoven(raw) {
		return fail(fmt.Errorf("%w: body already carries woven attribute", inject.ErrAlreadyWoven))
	}
	if err := t.BeginWeave(); err != nil {
		return fail(err)
	}
	ok := false
	defer func() { t.FinishWeave(ok) }()

	out = raw.Clone()
	sites, err := locate.Locate(out, t)
	if err != nil {
		return fail(err)
	}
	log.Debug("located sites",
		zap.Int("fields", len(sites.Fields)),
		zap.Int("methods", len(sites.Methods)),
		zap.Int("paths", len(sites.Paths)),
	)
	if err := d.weaver.Weave(out, t, sites); err != nil {
		return fail(err)
	}
	if d.verify {
		if err := bytecode.Verify(out); err != nil {
			return fail(err)
		}
	}
	ok = true
	log.Info("transformed type", zap.Int("type_index", t.Index()), zap.Int("methods", len(out.Methods)))
	return out, nil
}

// TransformBytes decodes a raw body, transforms it and encodes the result.
func (d *Driver) TransformBytes(raw []byte, t *inject.TypeDescriptor) ([]byte, error) {
	c, err := bytecode.Unmarshal(raw)
	if err != nil {
		return nil, &TransformError{Err: err}
	}
	out, err := d.Transform(c, t)
	if err != nil {
		return nil, err
	}
	return bytecode.Marshal(out)
}

// LoadHook returns a transformer for the host runtime. Classes with no
// registered descriptor pass through unchanged.
func (d *Driver) LoadHook() func(*bytecode.Class) (*bytecode.Class, error) {
	return func(raw *bytecode.Class) (*bytecode.Class, error) {
		t, ok := d.registry.TypeByName(raw.Name)
		if !ok {
			return raw, nil
		}
		return d.Transform(raw, t)
	}
}
