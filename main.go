package main

import (
	"context"
	"fmt"
	"os"

	"clipvault/internal/app"
	"clipvault/internal/app/commands"

	"github.com/urfave/cli/v3"
)

// set via -ldflags "-X main.version=vX.Y.Z"
var version = "vX.X.X"

func main() {
	a := &app.App{
		Name:    "clipvault",
		Version: version,
	}
	defer a.Close()

	root := &cli.Command{
		Name:    a.Name,
		Usage:   "resolve web video links and manage a local download library",
		Version: a.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Usage: "log level override (debug)"},
			&cli.IntFlag{Name: "port", Usage: "listen port override"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return a.Init(ctx, cmd)
		},
		Commands: commands.All(a),
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}
}
