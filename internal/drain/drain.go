// Package drain pulls a catalog result to the end, saving packets and tracking progress.
package drain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/saver"
)

// DefaultHeartbeat is the interval between heartbeat logs.
const DefaultHeartbeat = 30 * time.Second

// Options configures a run.
type Options struct {
	// OutDir receives packets, the progress file and the run report. Empty disables all three.
	OutDir string
	// Saver writes packets; nil only counts records.
	Saver       saver.PacketSaver
	SaveWorkers int
	Heartbeat   time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SaveWorkers <= 0 {
		o.SaveWorkers = 2
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = DefaultHeartbeat
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run drains res. Each chunk is saved by a worker pool and released once written.
// The result is always closed on return; a canceled ctx ends the run with StatusCanceled.
func Run(ctx context.Context, res *catalog.Result, opts Options) (Report, error) {
	opts = opts.withDefaults()
	if opts.Saver != nil && opts.OutDir == "" {
		res.Close()
		return Report{}, errors.New("drain: saver needs an output directory")
	}
	rep := Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := opts.Logger.With("run", rep.RunID[:8])
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			res.Close()
			return rep, fmt.Errorf("drain: %w", err)
		}
	}

	c := &counters{instruments: make(map[string]int)}

	var progWg sync.WaitGroup
	progress := make(chan Progress, 64)
	if opts.OutDir != "" {
		progWg.Add(1)
		go func() {
			defer progWg.Done()
			RunProgressWriter(filepath.Join(opts.OutDir, ProgressFile), progress, logger)
		}()
	}

	packets := make(chan packet, opts.SaveWorkers*2)
	results := make(chan saveResult, 64)
	var resWg sync.WaitGroup
	resWg.Add(1)
	go func() {
		defer resWg.Done()
		runResultCollector(results, c)
	}()
	var wg sync.WaitGroup
	if opts.Saver != nil {
		wg.Add(opts.SaveWorkers)
		for i := 0; i < opts.SaveWorkers; i++ {
			go func() {
				defer wg.Done()
				runSaver(opts.OutDir, opts.Saver, packets, results, logger)
			}()
		}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go runHeartbeat(hbCtx, opts.Heartbeat, c, logger)

	logger.Info("drain start", "out_dir", opts.OutDir, "chunk_size", res.ChunkSize())
	var runErr error
	seq := 0
	for ch, err := range res.Chunks(ctx) {
		if err != nil {
			runErr = err
			break
		}
		p := c.observe(ch)
		p.RunID = rep.RunID
		if opts.OutDir != "" {
			select {
			case progress <- p:
			default:
				logger.Warn("progress channel full, skip update", "chunks", p.Chunks)
			}
		}
		if opts.Saver == nil {
			_ = ch.Release()
			continue
		}
		seq++
		packets <- packet{seq: seq, chunk: ch}
	}

	close(packets)
	wg.Wait()
	close(results)
	resWg.Wait()
	close(progress)
	progWg.Wait()
	cancel()

	c.mu.Lock()
	rep.Chunks, rep.Records = c.chunks, c.records
	rep.FirstTsInit, rep.LastTsInit = c.first, c.last
	rep.Packets, rep.Failed = c.packets, c.failed
	rep.Instruments = c.instruments
	c.mu.Unlock()
	rep.FinishedAt = time.Now().UTC()

	switch {
	case runErr != nil && ctx.Err() != nil:
		rep.Status = StatusCanceled
		rep.Error = runErr.Error()
	case runErr != nil:
		rep.Status = StatusFailed
		rep.Error = runErr.Error()
	case len(rep.Failed) > 0:
		rep.Status = StatusFailed
		runErr = fmt.Errorf("drain: %d packets failed: %s", len(rep.Failed), joinFailedReasons(rep.Failed))
		rep.Error = runErr.Error()
	default:
		rep.Status = StatusOK
	}

	logSummary(logger, rep)
	if opts.OutDir != "" {
		if err := writeRunReport(opts.OutDir, rep); err != nil {
			logger.Warn("could not write run report", "error", err)
		}
	}
	return rep, runErr
}

func logSummary(logger *slog.Logger, rep Report) {
	logger.Info("summary", "status", rep.Status, "chunks", rep.Chunks, "records", rep.Records,
		"packets", rep.Packets, "elapsed", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	ids := make([]string, 0, len(rep.Instruments))
	for id := range rep.Instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		logger.Info("summary instrument", "instrument", id, "records", rep.Instruments[id])
	}
	if len(rep.Failed) > 0 {
		logger.Info("summary failed", "count", len(rep.Failed), "reasons", joinFailedReasons(rep.Failed))
	}
}
