package main

import (
	"os"

	"github.com/bronystylecrazy/ultraweave"
	"github.com/bronystylecrazy/ultraweave/cmd"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		ultraweave.Module(ultraweave.WithConfigFile(os.Getenv("ULTRAWEAVE_CONFIG"))),
		cmd.Module(),
	).Run()
}
