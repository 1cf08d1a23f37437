package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "solwatch",
		Usage: "Solana wallet event watcher CLI",
		Description: `A command-line tool for managing and debugging the solwatch watcher.

Use this CLI to inspect and reset polling cursors, maintain the manual
price override file, and send test notifications.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "cursor",
				Usage: "Polling cursor inspection and management",
				Subcommands: []*cli.Command{
					listCursorsCommand(),
					getCursorCommand(),
					clearCursorsCommand(),
				},
			},
			{
				Name:  "price",
				Usage: "Manual price override management",
				Subcommands: []*cli.Command{
					listPricesCommand(),
					setPriceCommand(),
				},
			},
			{
				Name:  "notify",
				Usage: "Notification utilities",
				Subcommands: []*cli.Command{
					testNotifyCommand(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
