package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"clipvault/internal/app"
	"clipvault/internal/library"

	"github.com/urfave/cli/v3"
)

var Fetch = register(func(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "analyze a video link and download it into the library",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "backend base URL (default BACKEND_URL env, else the local server)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rawURL := cmd.Args().First()
			if rawURL == "" {
				return fmt.Errorf("usage: %s fetch <url>", a.Name)
			}

			backend := cmd.String("backend")
			if backend == "" {
				backend = strings.TrimSpace(os.Getenv("BACKEND_URL"))
			}
			if backend == "" {
				backend = a.BaseURL
			}

			client := library.NewClient(backend, a.FallbackBackendURL)
			res, err := client.Analyze(ctx, rawURL)
			if err != nil {
				return err
			}
			if len(res.Formats) == 0 {
				return fmt.Errorf("no downloadable format returned")
			}
			chosen := res.Formats[0]
			fmt.Printf("%s (%s, %s)\n", res.Title, res.SourceDomain, chosen.Quality)

			manager, err := newManager(a)
			if err != nil {
				return err
			}
			defer manager.Close()

			rec := library.NewRecord(res, chosen)
			done := make(chan library.MediaRecord, 1)
			manager.SetNotify(func(records []library.MediaRecord) {
				for _, r := range records {
					if r.ID != rec.ID {
						continue
					}
					if r.IsDownloading {
						fmt.Printf("\r%3.0f%%", r.Progress*100)
					} else {
						select {
						case done <- r:
						default:
						}
					}
					return
				}
			})

			if err := manager.Start(rec, chosen.URL); err != nil {
				return err
			}

			select {
			case r := <-done:
				fmt.Println()
				if !r.IsCompleted {
					return fmt.Errorf("download failed, see logs for detail")
				}
				fmt.Printf("saved to %s\n", *r.FilePath)
				return nil
			case <-ctx.Done():
				manager.Cancel(rec.ID)
				return ctx.Err()
			}
		},
	}
})

// newManager wires the production manager: LMDB-backed queue persistence,
// media files under the app storage dir, plain HTTP transport.
func newManager(a *app.App) (*library.Manager, error) {
	storage, err := library.NewDiskStorage(a.MediaDir, a.DB)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.RuntimeDir, 0o755); err != nil {
		return nil, err
	}
	transport := library.NewHTTPTransport(a.RuntimeDir)
	return library.NewManager(a.Context, storage, transport)
}
