package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const CommandersGroupName = "ultraweave/cmd/commanders"

type registerParams struct {
	fx.In

	Root     *Root
	Commands []Commander `group:"ultraweave/cmd/commanders"`
}

type startParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Root       *Root
}

// AsCommander annotates constructor so its result joins the commanders group.
func AsCommander(constructor any) any {
	return fx.Annotate(constructor, fx.As(new(Commander)), fx.ResultTags(`group:"`+CommandersGroupName+`"`))
}

// Module provides the root command and the built-in commands. The root runs
// when the app starts and the app shuts down once it returns. It expects an
// *ultraweave.Engine and a *zap.Logger in the graph.
func Module(extends ...fx.Option) fx.Option {
	return fx.Module("ultraweave/cmd",
		fx.Provide(
			func() *Root { return New(nil) },
			AsCommander(NewTransformCommand),
			AsCommander(NewDisasmCommand),
			AsCommander(NewVersionCommand),
		),
		fx.Options(extends...),
		fx.Invoke(RegisterCommands, registerStart),
	)
}

func RegisterCommands(params registerParams) error {
	ensureCommandRunnable(params.Root.Command)
	return params.Root.Register(params.Commands...)
}

func registerStart(p startParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Root.Start(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			return p.Shutdowner.Shutdown()
		},
	})
}

func ensureCommandRunnable(cmd *cobra.Command) {
	if cmd == nil || cmd.Run != nil || cmd.RunE != nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return c.Help()
	}
}
