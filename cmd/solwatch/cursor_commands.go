package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/brojonat/solwatch/service/cursor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

// cursorBackend is the subset of store operations the CLI needs,
// beyond the watcher's Load/Save contract.
type cursorBackend interface {
	cursor.Store
	All(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}

// openCursorBackend selects the same backend the watcher would:
// Postgres when DATABASE_URL is set, the JSON file otherwise.
func openCursorBackend(ctx context.Context) (cursorBackend, func(), error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := cursor.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}

	path := os.Getenv("CURSOR_FILE_PATH")
	if path == "" {
		path = "data/cursors.json"
	}
	store, err := cursor.NewFileStore(path, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func listCursorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all stored cursors",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			store, cleanup, err := openCursorBackend(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			cursors, err := store.All(ctx)
			if err != nil {
				return err
			}
			if len(cursors) == 0 {
				fmt.Println("no cursors stored")
				return nil
			}

			addresses := make([]string, 0, len(cursors))
			for addr := range cursors {
				addresses = append(addresses, addr)
			}
			sort.Strings(addresses)
			for _, addr := range addresses {
				fmt.Printf("%s\t%s\n", addr, cursors[addr])
			}
			return nil
		},
	}
}

func getCursorCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the cursor for one address",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one address argument")
			}
			ctx := c.Context
			store, cleanup, err := openCursorBackend(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sig, err := store.Load(ctx, c.Args().First())
			if err != nil {
				return err
			}
			if sig == "" {
				fmt.Println("no cursor (address never observed)")
				return nil
			}
			fmt.Println(sig)
			return nil
		},
	}
}

func clearCursorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all cursors (every address re-seeds on the next cycle)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Skip the confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return fmt.Errorf("refusing to clear cursors without --yes")
			}
			ctx := c.Context
			store, cleanup, err := openCursorBackend(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("cursors cleared")
			return nil
		},
	}
}
