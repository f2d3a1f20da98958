// Package commands holds the cli command implementations. Each command file
// registers itself via register(); All materializes the full set for an app.
package commands

import (
	"clipvault/internal/app"

	"github.com/urfave/cli/v3"
)

type builder func(a *app.App) *cli.Command

var registry []builder

func register(b builder) builder {
	registry = append(registry, b)
	return b
}

// All builds every registered command. Builders may return nil to opt out.
func All(a *app.App) []*cli.Command {
	var out []*cli.Command
	for _, b := range registry {
		if c := b(a); c != nil {
			out = append(out, c)
		}
	}
	return out
}
