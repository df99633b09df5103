package main

import (
	"context"
	"os"

	"github.com/awnumar/memguard"
	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/cmd"
	"github.com/grovetools/hop/pkg/cleanup"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.InitializeTerminal()

	hooks := cleanup.New()
	// Hooks run newest first, so key material is wiped after tunnels close.
	hooks.Register("memguard", func() error {
		memguard.Purge()
		return nil
	})
	defer hooks.Run()

	ctx, stop := hooks.HandleSignals(context.Background())
	defer stop()

	return cli.Execute(ctx, cmd.NewRootCmd(hooks))
}
