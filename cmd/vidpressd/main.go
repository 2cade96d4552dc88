package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidpress/orchestrator/internal/api"
	"github.com/vidpress/orchestrator/internal/config"
	"github.com/vidpress/orchestrator/internal/db"
	"github.com/vidpress/orchestrator/internal/encoder"
	"github.com/vidpress/orchestrator/internal/history"
	"github.com/vidpress/orchestrator/internal/job"
	"github.com/vidpress/orchestrator/internal/orchestrator"
	"github.com/vidpress/orchestrator/internal/preset"
	"github.com/vidpress/orchestrator/internal/settings"
	"github.com/vidpress/orchestrator/internal/storage"
	"github.com/vidpress/orchestrator/internal/ws"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting vidpressd")
	log.Printf("HTTP port: %d", cfg.HTTPPort)
	log.Printf("Encoder runtime: %s (%s)", cfg.EncoderRuntime, cfg.EncoderWasmPath)

	dbStore, err := db.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Open data store: %v", err)
	}
	defer dbStore.Close()

	blobs, err := storage.NewStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Open blob store: %v", err)
	}

	presets, err := preset.Load(cfg.PresetsPath)
	if err != nil {
		log.Fatalf("Load presets: %v", err)
	}

	engine, err := newEngine(cfg)
	if err != nil {
		log.Fatalf("Configure encoder: %v", err)
	}
	adapter := encoder.NewAdapter(engine, cfg.MaxSourceSize)
	defer adapter.Close(context.Background())

	store := job.NewStore()
	events := job.NewEventBus(500)
	historyStore := history.NewStore(dbStore)
	settingsStore := settings.NewStore(dbStore)

	onHistory := history.AppendFunc(settingsStore, historyStore)
	orch := orchestrator.New(store, events, blobs, adapter, onHistory, cfg.StartStagger)

	h := api.NewHandlers(store, orch, events, blobs, historyStore, settingsStore, presets)
	router := api.NewRouter(h, ws.NewServer(events))

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func newEngine(cfg *config.Config) (encoder.Engine, error) {
	switch cfg.EncoderRuntime {
	case "wazero":
		return encoder.NewWazeroEngine(cfg.EncoderWasmPath), nil
	case "wasmtime":
		return encoder.NewWasmtimeEngine(cfg.EncoderWasmPath), nil
	default:
		return nil, fmt.Errorf("unknown encoder runtime: %q", cfg.EncoderRuntime)
	}
}
