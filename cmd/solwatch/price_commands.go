package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/brojonat/solwatch/service/price"
	"github.com/urfave/cli/v2"
)

func manualPricePath() string {
	if p := os.Getenv("MANUAL_PRICE_FILE_PATH"); p != "" {
		return p
	}
	return "data/manual_prices.json"
}

func listPricesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List manual price overrides",
		Action: func(c *cli.Context) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			store := price.NewManualStore(manualPricePath(), logger)

			prices := store.All()
			if len(prices) == 0 {
				fmt.Println("no manual prices set")
				return nil
			}

			keys := make([]string, 0, len(prices))
			for k := range prices {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s\t%.6f\n", k, prices[k])
			}
			return nil
		},
	}
}

func setPriceCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a manual price override for a mint or symbol",
		ArgsUsage: "<mint-or-symbol> <usd-price>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected <mint-or-symbol> <usd-price>")
			}
			key := c.Args().Get(0)
			usd, err := strconv.ParseFloat(c.Args().Get(1), 64)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", c.Args().Get(1), err)
			}
			if usd < 0 {
				return fmt.Errorf("price must be non-negative")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			store := price.NewManualStore(manualPricePath(), logger)
			if err := store.Set(key, usd); err != nil {
				return err
			}
			fmt.Printf("set %s = %.6f\n", key, usd)
			return nil
		},
	}
}
