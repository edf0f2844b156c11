package app

import (
	"context"
	"fmt"
	"log/slog"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/saver"
	"tick-catalog/internal/slogx"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideLogger builds the process logger and installs it as slog default (for Wire).
// The cleanup closes the log file.
func ProvideLogger(cfg *Config) (*slog.Logger, func()) {
	logger, closer := slogx.NewFile(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)
	return logger, func() { closer.Close() }
}

// ProvideLedger returns the process-wide resource ledger (for Wire).
func ProvideLedger() *metrics.Ledger {
	return metrics.Default()
}

// ProvideManifest loads the source manifest named by SOURCES_FILE (for Wire).
func ProvideManifest(cfg *Config) (*Manifest, error) {
	return LoadManifest(cfg.SourcesFile)
}

// ProvidePacketSaver creates PacketSaver from config (for Wire).
// SAVE_FORMAT=none yields a nil saver: records are counted, not written.
func ProvidePacketSaver(cfg *Config) (saver.PacketSaver, error) {
	if cfg.SaveFormat == "none" {
		return nil, nil
	}
	ps := saver.NewPacketSaver(cfg.SaveFormat)
	if ps == nil {
		return nil, fmt.Errorf("unsupported SAVE_FORMAT %q (use: csv, parquet, json, none)", cfg.SaveFormat)
	}
	return ps, nil
}

// ProvideCatalog opens every manifest source (for Wire).
// Caller must run the cleanup, which closes all files.
func ProvideCatalog(cfg *Config, m *Manifest, logger *slog.Logger, ledger *metrics.Ledger) (*catalog.Catalog, func(), error) {
	chunkSize := cfg.ChunkSize
	if m.ChunkSize > 0 {
		chunkSize = m.ChunkSize
	}
	cat := catalog.New(catalog.Options{
		ChunkSize:  chunkSize,
		CheckOrder: cfg.CheckOrder,
		Ledger:     ledger,
		Logger:     logger,
	})
	if err := cat.RegisterAll(context.Background(), m.Specs(cfg.Window)); err != nil {
		cat.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := cat.Close(); err != nil {
			logger.Warn("catalog close", "error", err)
		}
	}
	return cat, cleanup, nil
}
