package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/drain"
	"tick-catalog/internal/saver"
)

// Run drains the catalog once: consume, save packets, write the run report.
// SIGINT/SIGTERM cancel the drain, which closes every file before returning.
func Run(cfg *Config, cat *catalog.Catalog, ps saver.PacketSaver, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			logger.Info("received signal, graceful shutdown", "sig", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr, prometheus.DefaultGatherer)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", "error", err)
			}
		}()
		defer shutdownServer(srv)
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
	}

	if prev, ok := drain.ReadProgress(cfg.ProgressPath()); ok {
		logger.Info("previous run", "run", prev.RunID, "records", prev.Records, "last_ts_init", prev.LastTsInit,
			"updated_at", prev.UpdatedAt.Format(time.RFC3339))
	}

	for _, s := range cat.Sources() {
		if s.StatsMissing {
			logger.Warn("source has no row-group statistics, reading all groups", "name", s.Name, "path", s.Path)
		}
	}

	res, err := cat.Consume(0)
	if err != nil {
		return err
	}
	opts := drain.Options{
		Saver:       ps,
		SaveWorkers: cfg.SaveWorkers,
		Heartbeat:   cfg.Heartbeat,
		OutDir:      cfg.OutDir,
		Logger:      logger,
	}
	if ps != nil {
		logger.Info("save dir", "dir", cfg.OutDir, "format", cfg.SaveFormat,
			"pattern", "{instrument}/{first_ts}_{last_ts}."+ps.Extension())
	}
	_, err = drain.Run(ctx, res, opts)

	out := cat.Outstanding()
	logger.Info("resources", "open_files", out.Files, "outstanding_chunks", out.Chunks)
	return err
}

func newMetricsServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
