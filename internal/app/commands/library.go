package commands

import (
	"context"
	"fmt"

	"clipvault/internal/app"
	"clipvault/internal/library"

	"github.com/urfave/cli/v3"
)

var Library = register(func(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "manage downloaded media records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list all records, newest first",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					m, err := newManager(a)
					if err != nil {
						return err
					}
					defer m.Close()
					printRecords(m.Records())
					return nil
				},
			},
			{
				Name:      "search",
				Usage:     "list records whose title matches",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					m, err := newManager(a)
					if err != nil {
						return err
					}
					defer m.Close()
					printRecords(m.Search(cmd.Args().First()))
					return nil
				},
			},
			{
				Name:      "rename",
				Usage:     "rename a record (and its file, best effort)",
				ArgsUsage: "<id> <new title>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, title := cmd.Args().Get(0), cmd.Args().Get(1)
					if id == "" || title == "" {
						return fmt.Errorf("usage: %s library rename <id> <new title>", a.Name)
					}
					m, err := newManager(a)
					if err != nil {
						return err
					}
					defer m.Close()
					return m.Rename(id, title)
				},
			},
			{
				Name:      "rm",
				Usage:     "delete a record and its file",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("usage: %s library rm <id>", a.Name)
					}
					m, err := newManager(a)
					if err != nil {
						return err
					}
					defer m.Close()
					m.Delete(id)
					return nil
				},
			},
		},
	}
})

func printRecords(records []library.MediaRecord) {
	if len(records) == 0 {
		fmt.Println("library is empty")
		return
	}
	for _, r := range records {
		state := "idle"
		switch {
		case r.IsDownloading:
			state = fmt.Sprintf("downloading %3.0f%%", r.Progress*100)
		case r.IsCompleted:
			state = "completed"
		}
		fmt.Printf("%s  %-14s %s  %s (%s)\n", r.ID, state, r.DateAdded.Format("2006-01-02"), r.Title, r.FileSize)
	}
}
