package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"solana-strategy-lab/internal/config"
	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/prediction"
	"solana-strategy-lab/internal/simulation"
	"solana-strategy-lab/internal/snapshots"
	"solana-strategy-lab/internal/strategy"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	snapshotPath := flag.String("snapshot", "", "Path to one recorded snapshot file (required)")
	strategyID := flag.String("strategy-id", "", "Strategy id from the config (default: first)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	verbose := flag.Bool("verbose", false, "Log each simulator decision")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	// Validate required flags
	if *snapshotPath == "" {
		logger.Fatal("--snapshot is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if len(cfg.Strategies) == 0 {
		logger.Fatal("config has no strategies")
	}

	strategyConfig := cfg.Strategies[0]
	if *strategyID != "" {
		found := false
		for _, sc := range cfg.Strategies {
			if sc.ID == *strategyID {
				strategyConfig = sc
				found = true
				break
			}
		}
		if !found {
			logger.Fatalf("strategy %q not found in config", *strategyID)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load the snapshot series
	source := snapshots.NewFileSource(filepath.Dir(*snapshotPath))
	series, err := source.Load(*snapshotPath)
	if err != nil {
		logger.Fatalf("load snapshot: %v", err)
	}

	// Build strategy and simulator
	strat, err := strategy.FromConfig(strategyConfig, prediction.NewMemoryCache())
	if err != nil {
		logger.Fatalf("build strategy: %v", err)
	}

	var simLogger *log.Logger
	if *verbose {
		simLogger = logger
	} else {
		simLogger = log.New(io.Discard, "", 0)
	}

	sim, err := simulation.New(cfg.Simulation, strat, simulation.WithLogger(simLogger))
	if err != nil {
		logger.Fatalf("build simulator: %v", err)
	}

	logger.Printf("Simulating: strategy=%s mint=%s snapshots=%d",
		strat.ID(), series.History.Mint, len(series.History.Entries))

	result, err := sim.Run(ctx, series.Info, series.History)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(result, cfg.Simulation.InitialBalance)
	}
}

// printResult outputs a human-readable simulation result.
func printResult(r *domain.SimulationResult, initialBalance int64) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Mint:               %s\n", r.Mint)
	fmt.Println()

	if r.Exit != nil {
		fmt.Println("Exit (no trade executed):")
		fmt.Printf("  Code:             %s\n", r.Exit.Code)
		fmt.Printf("  Message:          %s\n", r.Exit.Message)
		fmt.Printf("  Time:             %s\n", time.UnixMilli(r.Exit.TimestampMs).Format(time.RFC3339))
		return
	}

	t := r.Trade
	fmt.Println("Transactions:")
	for _, tx := range t.Transactions {
		fmt.Printf("  %-4s  %s  price=%.9f  gross=%s  fee=%s  reason=%s\n",
			tx.Type,
			time.UnixMilli(tx.TimestampMs).Format(time.RFC3339),
			tx.PriceSOL,
			formatSOL(tx.GrossLamports),
			formatSOL(tx.FeeLamports),
			tx.Metadata["reason"])
	}
	fmt.Println()

	fmt.Println("Result:")
	fmt.Printf("  Initial Balance:  %s\n", formatSOL(initialBalance))
	fmt.Printf("  Final Balance:    %s\n", formatSOL(t.FinalBalance))
	if t.Holdings > 0 {
		fmt.Printf("  Unsold Holdings:  %d base units (%s marked to market)\n",
			t.Holdings, formatSOL(t.HoldingsValue))
	}
	fmt.Printf("  Profit:           %s\n", formatSOL(t.ProfitLamports))
	fmt.Printf("  ROI:              %.2f%%\n", t.ROIPct)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", t.MaxDrawdownPct)
	if t.FirstBuyTimestamp > 0 {
		fmt.Printf("  First Buy:        %s\n", time.UnixMilli(t.FirstBuyTimestamp).Format(time.RFC3339))
	}
}

func formatSOL(lamports int64) string {
	return fmt.Sprintf("%.6f SOL", float64(lamports)/float64(domain.LamportsPerSOL))
}
