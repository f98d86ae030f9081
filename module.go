package ultraweave

import (
	"context"

	"github.com/bronystylecrazy/ultraweave/cfg"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/log"
	"github.com/bronystylecrazy/ultraweave/transform"
	"github.com/bronystylecrazy/ultraweave/vm"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ModuleName = "ultraweave"

type moduleOptions struct {
	config []cfg.Option
	engine []EngineOption
}

// Option configures Module.
type Option func(*moduleOptions)

// WithConfigFile reads path on top of the defaults. A missing file is not an
// error.
func WithConfigFile(path string) Option {
	return func(o *moduleOptions) {
		if path != "" {
			o.config = append(o.config, cfg.WithSourceFile(path), cfg.WithOptional())
		}
	}
}

func WithConfigOptions(opts ...cfg.Option) Option {
	return func(o *moduleOptions) { o.config = append(o.config, opts...) }
}

func WithEngineOptions(opts ...EngineOption) Option {
	return func(o *moduleOptions) { o.engine = append(o.engine, opts...) }
}

type startParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    cfg.Config
	Engine    *Engine
}

// Module provides the configuration, the logger, the engine and its parts.
// With registry.rebind_on_start every binding is computed when the app starts,
// after all invokes had the chance to register types and rules.
func Module(opts ...Option) fx.Option {
	o := moduleOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return fx.Module(ModuleName,
		fx.Provide(
			func() (cfg.Config, error) { return cfg.Load(o.config...) },
			func(c cfg.Config) log.Config { return c.Log },
			func(c cfg.Config, logger *zap.Logger) *Engine { return NewEngine(c, logger, o.engine...) },
			func(e *Engine) *inject.Registry { return e.Registry },
			func(e *Engine) *transform.Driver { return e.Driver },
			func(e *Engine) *vm.Machine { return e.Machine },
		),
		log.Module(),
		fx.Invoke(registerRebind),
	)
}

func registerRebind(p startParams) {
	if !p.Config.Registry.RebindOnStart {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Engine.Rebind()
			return nil
		},
	})
}
