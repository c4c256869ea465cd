package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/diffwatch/cmd/diffwatch/commands"
	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("diffwatch"),
		kong.Description("Watch a repository maintenance backend and reconcile its file rewrites into before/after comparisons."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
