package commands

import (
	"context"
	"fmt"
	"strconv"

	"clipvault/internal/app"
	"clipvault/internal/platform/database"

	"github.com/Data-Corruption/stdx/xterm/prompt"
	"github.com/urfave/cli/v3"
)

var Setup = register(func(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "interactive initial configuration",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("%s setup\n\n", a.Name)

			fmt.Println("Port for the backend server (empty keeps the current value):")
			portStr, err := prompt.String("")
			if err != nil {
				return fmt.Errorf("failed to read port: %w", err)
			}
			var port int
			if portStr != "" {
				port, err = strconv.Atoi(portStr)
				if err != nil || port < 1 || port > 65535 {
					return fmt.Errorf("invalid port %q", portStr)
				}
			}

			fmt.Println("\nExternally visible host name (empty keeps the current value):")
			host, err := prompt.String("")
			if err != nil {
				return fmt.Errorf("failed to read host: %w", err)
			}

			fmt.Println("\nMedia directory name under the storage dir (empty keeps the current value):")
			mediaDir, err := prompt.String("")
			if err != nil {
				return fmt.Errorf("failed to read media dir: %w", err)
			}

			if err := database.UpdateConfig(a.DB, func(cfg *database.Configuration) error {
				if port != 0 {
					cfg.Port = port
				}
				if host != "" {
					cfg.Host = host
				}
				if mediaDir != "" {
					cfg.MediaDirName = mediaDir
				}
				return nil
			}); err != nil {
				return fmt.Errorf("failed to update config: %w", err)
			}

			fmt.Println("\nConfiguration saved.")
			return nil
		},
	}
})
