package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"solana-strategy-lab/internal/config"
	"solana-strategy-lab/internal/control"
	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/events"
	"solana-strategy-lab/internal/metadata"
	"solana-strategy-lab/internal/prediction"
	"solana-strategy-lab/internal/reporting"
	"solana-strategy-lab/internal/runner"
	"solana-strategy-lab/internal/snapshots"
	"solana-strategy-lab/internal/storage"
	chstore "solana-strategy-lab/internal/storage/clickhouse"
	"solana-strategy-lab/internal/storage/memory"
	"solana-strategy-lab/internal/storage/migrations"
	pgstore "solana-strategy-lab/internal/storage/postgres"
	"solana-strategy-lab/internal/strategy"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	snapshotsDir := flag.String("snapshots-dir", "", "Snapshot directory (overrides config)")
	policy := flag.String("policy", "all", "Persistence policy: all, best_only")
	fromStore := flag.Bool("from-store", false, "Load series from ClickHouse instead of files")
	outputJSON := flag.Bool("json", false, "Output final run record as JSON")
	reportPath := flag.String("report", "", "Write a Markdown run report to this path (.csv extension writes CSV)")
	migrate := flag.Bool("migrate", false, "Apply database schema migrations before running")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *snapshotsDir != "" {
		cfg.Snapshots.Dir = *snapshotsDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	persistPolicy := domain.PersistPolicy(*policy)
	if persistPolicy != domain.PersistAll && persistPolicy != domain.PersistBestOnly {
		logger.Fatalf("Invalid policy: %s. Must be all or best_only", *policy)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	var resultStore storage.ResultStore = memory.NewResultStore()
	var snapshotStore storage.SnapshotStore

	if !cfg.Storage.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("migrate postgres: %v", err)
			}
		}
		resultStore = pgstore.NewResultStore(pool)

		if cfg.Storage.ClickHouseDSN != "" {
			var conn *chstore.Conn
			if *migrate {
				conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
			} else {
				conn, err = chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
			}
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()
			snapshotStore = chstore.NewSnapshotStore(conn)
		}
	}
	if *fromStore && snapshotStore == nil {
		logger.Fatal("--from-store requires a ClickHouse DSN in the config")
	}

	// Build strategies
	cache := prediction.NewMemoryCache()
	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		strat, err := strategy.FromConfig(sc, cache)
		if err != nil {
			logger.Fatalf("build strategy %s: %v", sc.ID, err)
		}
		strategies = append(strategies, strat)
	}

	// Load assets
	var assets []*runner.Asset
	if *fromStore {
		assets, err = loadFromStore(ctx, snapshotStore)
	} else {
		assets, err = loadFromFiles(cfg.Snapshots.Dir)
	}
	if err != nil {
		logger.Fatalf("load snapshot series: %v", err)
	}
	if cfg.Metadata.Endpoint != "" {
		enrichAssets(ctx, metadata.NewProvider(cfg.Metadata.Endpoint), assets, logger)
	}
	logger.Printf("Sweep: %d strategies x %d tokens, policy=%s",
		len(strategies), len(assets), persistPolicy)

	// Abort on shutdown signals so the run record closes cleanly.
	token := control.NewToken()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, aborting run...", sig)
		token.Abort()
	}()

	r, err := runner.New(runner.Options{
		SimConfig: cfg.Simulation,
		Results:   resultStore,
		Publisher: events.NewMemoryPublisher(),
		Token:     token,
		Policy:    persistPolicy,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("build runner: %v", err)
	}

	run, err := r.Run(ctx, strategies, assets)
	if err != nil {
		logger.Fatalf("sweep failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(output))
	} else {
		printRun(ctx, run, resultStore)
	}

	if *reportPath != "" {
		if err := writeReport(ctx, *reportPath, run.RunID, resultStore, assets); err != nil {
			logger.Fatalf("write report: %v", err)
		}
		logger.Printf("Report written to %s", *reportPath)
	}
}

// writeReport generates the run report and writes it in the format
// implied by the file extension.
func writeReport(ctx context.Context, path, runID string, store storage.ResultStore, assets []*runner.Asset) error {
	series := make(map[string][]*domain.HistoryEntry, len(assets))
	for _, a := range assets {
		if a.History != nil {
			series[a.History.Mint] = a.History.Entries
		}
	}

	report, err := reporting.NewGenerator(store).Generate(ctx, runID, series)
	if err != nil {
		return err
	}

	var out string
	if strings.HasSuffix(path, ".csv") {
		out = reporting.RenderCSV(report.Strategies)
	} else {
		out = reporting.RenderMarkdown(report)
	}
	return os.WriteFile(path, []byte(out), 0o644)
}

// enrichAssets fills in missing token metadata from the provider. A
// fetch failure only costs the cosmetic fields, so it is logged and
// skipped.
func enrichAssets(ctx context.Context, provider *metadata.Provider, assets []*runner.Asset, logger *log.Logger) {
	for _, a := range assets {
		if a.Info == nil || a.Info.Mint == "" || a.Info.Symbol != "" {
			continue
		}
		info, err := provider.Fetch(ctx, a.Info.Mint)
		if err != nil {
			if !errors.Is(err, metadata.ErrNotFound) {
				logger.Printf("metadata %s: %v", a.Info.Mint, err)
			}
			continue
		}
		a.Info = info
	}
}

// loadFromFiles reads every snapshot document under a directory.
func loadFromFiles(dir string) ([]*runner.Asset, error) {
	source := snapshots.NewFileSource(dir)
	cache := snapshots.NewFileCache(source)

	paths, err := source.List()
	if err != nil {
		return nil, err
	}

	assets := make([]*runner.Asset, 0, len(paths))
	for _, path := range paths {
		series, err := cache.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		assets = append(assets, &runner.Asset{Info: series.Info, History: series.History})
	}
	return assets, nil
}

// loadFromStore reads every stored series from the snapshot store.
func loadFromStore(ctx context.Context, store storage.SnapshotStore) ([]*runner.Asset, error) {
	mints, err := store.ListMints(ctx)
	if err != nil {
		return nil, err
	}

	assets := make([]*runner.Asset, 0, len(mints))
	for _, mint := range mints {
		history, err := store.GetByMint(ctx, mint)
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", mint, err)
		}
		assets = append(assets, &runner.Asset{
			Info:    &domain.TokenInfo{Mint: mint},
			History: history,
		})
	}
	return assets, nil
}

// printRun outputs a human-readable run summary with its best results.
func printRun(ctx context.Context, run *domain.RunRecord, store storage.ResultStore) {
	fmt.Println()
	fmt.Println("=== Sweep Result ===")
	fmt.Printf("Run ID:             %s\n", run.RunID)
	fmt.Printf("Status:             %s\n", run.Status)
	if run.Message != "" {
		fmt.Printf("Message:            %s\n", run.Message)
	}
	fmt.Printf("Strategies:         %d\n", run.StrategyCount)
	fmt.Printf("Tokens:             %d\n", run.TokenCount)
	fmt.Println()

	best, err := store.BestStrategyResults(ctx, 10)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("best results unavailable: %v\n", err)
		}
		return
	}

	fmt.Println("Best strategies by PnL:")
	for i, sr := range best {
		fmt.Printf("  %2d. %-24s pnl=%.6f SOL roi=%.2f%% trades=%d winrate=%.1f%%\n",
			i+1, sr.StrategyID,
			float64(sr.PnLLamports)/float64(domain.LamportsPerSOL),
			sr.ROIPct, sr.Trades, sr.WinRatePct)
	}
}
