package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/donations/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Register       commands.RegisterCmd `cmd:"" help:"Register a tenant from a registration file"`
		Login          commands.LoginCmd    `cmd:"" help:"Sign in and store an access token"`
		Logout         commands.LogoutCmd   `cmd:"" help:"Forget the stored access token"`
		Whoami         commands.WhoamiCmd   `cmd:"" help:"Show the signed in identity and its capability"`
		Server         string               `help:"API server URL." default:"http://localhost:8080" env:"DONATIONS_SERVER"`
		CredentialsDir string               `help:"Directory holding stored tokens (default ~/.donations)." env:"DONATIONS_CREDENTIALS_DIR"`
		Debug          bool                 `help:"Enable debug mode." env:"DONATIONS_DEBUG"`
		Version        kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:          cli.Debug,
		Version:        version,
		Server:         cli.Server,
		CredentialsDir: cli.CredentialsDir,
	})
	cmd.FatalIfErrorf(err)
}
