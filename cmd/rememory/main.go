package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rememory/rememory/internal/config"
	"github.com/rememory/rememory/internal/gdrive"
	"github.com/rememory/rememory/internal/llm"
	"github.com/rememory/rememory/internal/server"
	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
	"github.com/rememory/rememory/internal/summarizer"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	log.Println("rememory: starting")

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	apiKey, err := cfg.APIKey()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	provider, modelName, err := llm.ParseModel(cfg.Model)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	client, err := llm.NewClient(provider, apiKey, modelName)
	if err != nil {
		log.Fatalf("llm init failed: %v", err)
	}

	index, err := storage.NewIndex(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	state := session.NewState(cfg.MaxGPSPoints)
	media := storage.NewMediaStore(cfg.AudioDir, cfg.PhotoDir)
	stateLog := storage.NewStateLog(cfg.LogDir)
	hub := server.NewHub()
	ingestor := server.NewIngestor(state, media, index)
	gen := summarizer.New(client, cfg.MaxContextHistory)
	loop := summarizer.NewLoop(state, gen, stateLog, index, hub, cfg.ParsedUpdateInterval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			go runDriveSync(ctx, syncer, stateLog)
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(assets, hub, ingestor, state, index, media),
	}
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("rememory: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}

func runDriveSync(ctx context.Context, syncer *gdrive.Syncer, stateLog *storage.StateLog) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path := stateLog.CurrentPath()
			if _, err := os.Stat(path); err != nil {
				continue
			}
			date := time.Now().UTC().Format("2006-01-02")
			if err := syncer.Sync(path, date); err != nil {
				log.Printf("gdrive sync error: %v", err)
			}
		}
	}
}
