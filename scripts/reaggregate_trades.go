package main

// Script to rebuild aggregated trades from stored fills. Aggregation is a
// pure derivation, so the upsert key makes reruns safe over any window.
//
// Usage:
//   go run scripts/reaggregate_trades.go --since 2026-01-01
//   go run scripts/reaggregate_trades.go --account 8f14e45f-... --since 2026-01-01

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"atlas/internal/adapters/config"
	"atlas/internal/adapters/postgres"
	"atlas/internal/domain/strategy"
	"atlas/internal/domain/trade"
	repopg "atlas/internal/repository/postgres"
	"atlas/pkg/logger"
)

func main() {
	account := flag.String("account", "", "Limit to one account id (uuid, optional)")
	since := flag.String("since", "", "Rebuild trades closed since this date (YYYY-MM-DD)")
	window := flag.Duration("window", time.Second, "Fill grouping window")
	flag.Parse()

	if *since == "" {
		fmt.Println("Error: --since is required")
		os.Exit(1)
	}
	from, err := time.Parse("2006-01-02", *since)
	if err != nil {
		fmt.Printf("Error: invalid --since date (use YYYY-MM-DD): %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Printf("Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		fmt.Printf("Error: connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	db := client.DB()
	fills := repopg.NewFillRepository(db)
	aggregator := trade.NewAggregator(
		fills,
		repopg.NewSnapshotRepository(db),
		repopg.NewTradeRepository(db),
		strategy.NewResolver(repopg.NewStrategyRepository(db)),
		*window,
	)

	ctx := context.Background()

	var accounts []uuid.UUID
	if *account != "" {
		id, err := uuid.Parse(*account)
		if err != nil {
			fmt.Printf("Error: invalid --account: %v\n", err)
			os.Exit(1)
		}
		accounts = []uuid.UUID{id}
	} else {
		accounts, err = fills.AccountsSince(ctx, from)
		if err != nil {
			fmt.Printf("Error: list accounts: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Rebuilding trades for %d account(s) since %s\n", len(accounts), from.Format("2006-01-02"))

	total := 0
	for _, id := range accounts {
		written, err := aggregator.AggregateAccount(ctx, id, from)
		if err != nil {
			fmt.Printf("  %s: error: %v\n", id, err)
			continue
		}
		fmt.Printf("  %s: %d trade(s)\n", id, written)
		total += written
	}

	fmt.Printf("Done, %d trade(s) written\n", total)
}
