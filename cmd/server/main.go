package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/donations/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"DONATIONS_DEBUG"`
		Version kong.VersionFlag
		Server  commands.ServerCmd  `cmd:"" help:"Start the API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations and exit"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
