// Package main runs the evaluation server: it executes a strategy sweep
// in the background, streams progress events over WebSocket, and accepts
// run-control commands (PAUSE, RESUME, ABORT, STATUS_REQUEST) on a
// second WebSocket channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"solana-strategy-lab/internal/config"
	"solana-strategy-lab/internal/control"
	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/events"
	"solana-strategy-lab/internal/observability"
	"solana-strategy-lab/internal/prediction"
	"solana-strategy-lab/internal/runner"
	"solana-strategy-lab/internal/snapshots"
	"solana-strategy-lab/internal/storage"
	"solana-strategy-lab/internal/storage/memory"
	pgstore "solana-strategy-lab/internal/storage/postgres"
	"solana-strategy-lab/internal/strategy"
)

// Server wires the runner, the event hub and the command channel.
type Server struct {
	runner   *runner.Runner
	token    *control.Token
	hub      *events.WebSocketHub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	policy := flag.String("policy", "all", "Persistence policy: all, best_only")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	persistPolicy := domain.PersistPolicy(*policy)
	if persistPolicy != domain.PersistAll && persistPolicy != domain.PersistBestOnly {
		logger.Fatalf("Invalid policy: %s. Must be all or best_only", *policy)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	var resultStore storage.ResultStore = memory.NewResultStore()
	if !cfg.Storage.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		resultStore = pgstore.NewResultStore(pool)
	}

	// Build strategies and assets
	cache := prediction.NewMemoryCache()
	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		strat, err := strategy.FromConfig(sc, cache)
		if err != nil {
			logger.Fatalf("build strategy %s: %v", sc.ID, err)
		}
		strategies = append(strategies, strat)
	}

	source := snapshots.NewFileSource(cfg.Snapshots.Dir)
	paths, err := source.List()
	if err != nil {
		logger.Fatalf("list snapshots: %v", err)
	}
	fileCache := snapshots.NewFileCache(source)
	assets := make([]*runner.Asset, 0, len(paths))
	for _, path := range paths {
		series, err := fileCache.Load(path)
		if err != nil {
			logger.Fatalf("load %s: %v", path, err)
		}
		assets = append(assets, &runner.Asset{Info: series.Info, History: series.History})
	}

	hub := events.NewWebSocketHub(events.WithHubLogger(logger))
	token := control.NewToken()

	r, err := runner.New(runner.Options{
		SimConfig: cfg.Simulation,
		Results:   resultStore,
		Publisher: hub,
		Token:     token,
		Policy:    persistPolicy,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("build runner: %v", err)
	}

	srv := &Server{
		runner: r,
		token:  token,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/events", hub)
	mux.HandleFunc("/ws/commands", srv.handleCommands)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start the sweep in the background.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		logger.Printf("Starting run: %d strategies x %d tokens, policy=%s",
			len(strategies), len(assets), persistPolicy)
		run, err := r.Run(ctx, strategies, assets)
		if err != nil {
			logger.Printf("run failed: %v", err)
			return
		}
		logger.Printf("Run %s finished: status=%s best=%s pnl=%d",
			run.RunID, run.Status, run.BestStrategyID, run.BestPnL)
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		token.Abort()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}
		hub.Close()
	}()

	logger.Printf("Listening on %s", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server: %v", err)
	}
	<-runDone
}

// handleCommands upgrades one client connection and serves its command
// stream until the client disconnects.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("command upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var cmd control.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("command read: %v", err)
			}
			return
		}

		reply := s.dispatch(&cmd)
		if reply == nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Printf("command reply: %v", err)
			return
		}
	}
}

// dispatch applies one command to the in-flight run. PAUSE and RESUME
// are fire-and-forget. ABORT and STATUS_REQUEST produce a reply.
func (s *Server) dispatch(cmd *control.Command) *control.Reply {
	status := s.runner.Status()
	if cmd.RunID != "" && cmd.RunID != status.RunID {
		return &control.Reply{
			CorrelationID: cmd.CorrelationID,
			RunID:         cmd.RunID,
			Status:        "UNKNOWN_RUN",
		}
	}

	switch cmd.Type {
	case control.CommandPause:
		s.logger.Printf("command: pause run %s", status.RunID)
		s.token.Pause()
		return nil
	case control.CommandResume:
		s.logger.Printf("command: resume run %s", status.RunID)
		s.token.Resume()
		return nil
	case control.CommandAbort:
		s.logger.Printf("command: abort run %s", status.RunID)
		s.token.Abort()
		return &control.Reply{
			CorrelationID: cmd.CorrelationID,
			RunID:         status.RunID,
			Status:        string(domain.RunStatusAborted),
			AbortedIDs:    []string{status.RunID},
		}
	case control.CommandStatusRequest:
		return &control.Reply{
			CorrelationID: cmd.CorrelationID,
			RunID:         status.RunID,
			Status:        string(status.Status),
			Payload:       status,
		}
	default:
		s.logger.Printf("command: unknown type %q", cmd.Type)
		return &control.Reply{
			CorrelationID: cmd.CorrelationID,
			RunID:         status.RunID,
			Status:        "UNKNOWN_COMMAND",
		}
	}
}
