package main

import (
	"log/slog"
	"os"

	"tick-catalog/internal/app"
	"tick-catalog/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.Default)
}

func main() {
	a, cleanup, err := InitializeApp()
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	cfg := a.Config
	slog.Info("catalog ready", "id", a.Catalog.ID(), "sources", len(a.Catalog.Sources()), "chunk_size", cfg.ChunkSize)

	err = app.Run(cfg, a.Catalog, a.Saver, a.Logger)
	cleanup()
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}
