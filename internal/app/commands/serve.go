package commands

import (
	"context"
	"fmt"
	"time"

	"clipvault/internal/app"
	"clipvault/internal/platform/database"
	"clipvault/internal/platform/http/server"
	"clipvault/internal/platform/http/server/router"
	"clipvault/internal/resolve"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// spawnBurst caps concurrent bursts of streaming subprocesses; refill is one
// per two seconds.
const spawnBurst = 4

var Serve = register(func(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the resolution backend",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := a.Extract.EnsureTool(); err != nil {
				return fmt.Errorf("extraction tool unavailable: %w", err)
			}

			cfg, err := database.ViewConfig(a.DB)
			if err != nil {
				return fmt.Errorf("failed to view config: %w", err)
			}
			port := cfg.Port
			if o := cmd.Int("port"); o != 0 {
				port = o
			}

			mux := router.New(router.Deps{
				Log:      a.Log,
				Resolver: resolve.New(a.Extract, a.UserAgent),
				Limiter:  a.Limiter,
				OpenStream: func(ctx context.Context, rawURL string) (router.MediaStream, error) {
					return a.Extract.OpenStream(ctx, rawURL)
				},
				BaseURL: a.BaseURL,
				Spawn:   rate.NewLimiter(rate.Every(2*time.Second), spawnBurst),
			})

			srv := server.New(fmt.Sprintf(":%d", port), mux, a.Log)
			return srv.Run(ctx)
		},
	}
})
