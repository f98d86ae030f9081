package log

import "go.uber.org/fx"

var ModuleName = "ultraweave/log"

// Module provides the zap logger from a Config already in the graph and routes
// fx events through it.
func Module() fx.Option {
	return fx.Module(ModuleName,
		fx.Provide(NewZapLogger),
		fx.WithLogger(NewEventLogger),
	)
}
