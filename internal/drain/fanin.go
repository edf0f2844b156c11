package drain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tick-catalog/internal/model"
	"tick-catalog/internal/saver"
)

type packet struct {
	seq   int
	chunk *model.Chunk
}

type saveResult struct {
	ok         bool
	instrument string
	rng        string
	reason     string
	records    int
}

// counters is shared by the pull loop, the collector and the heartbeat.
type counters struct {
	mu          sync.Mutex
	chunks      int
	records     int
	first, last uint64
	instruments map[string]int
	packets     int
	failed      []failedEntry
}

func (c *counters) observe(ch *model.Chunk) Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == 0 {
		c.first, _ = ch.First()
	}
	c.last, _ = ch.Last()
	c.chunks++
	c.records += ch.Len()
	for _, q := range ch.Records {
		c.instruments[q.InstrumentID]++
	}
	return Progress{Chunks: c.chunks, Records: c.records, LastTsInit: c.last, UpdatedAt: time.Now().UTC()}
}

func runResultCollector(results <-chan saveResult, c *counters) {
	for r := range results {
		c.mu.Lock()
		if r.ok {
			c.packets++
		} else {
			c.failed = append(c.failed, failedEntry{Instrument: r.instrument, Range: r.rng, Reason: r.reason})
		}
		c.mu.Unlock()
	}
}

func runHeartbeat(ctx context.Context, interval time.Duration, c *counters, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			chunks, records, last, packets, failed := c.chunks, c.records, c.last, c.packets, len(c.failed)
			c.mu.Unlock()
			logger.Info("heartbeat", "chunks", chunks, "records", records, "last_ts_init", last, "packets", packets, "failed", failed)
		}
	}
}

// runSaver writes each packet as one file per instrument and releases the chunk.
func runSaver(dir string, s saver.PacketSaver, packets <-chan packet, results chan<- saveResult, logger *slog.Logger) {
	for p := range packets {
		for _, g := range splitByInstrument(p.chunk.Records) {
			first, last := g[0].TsInit, g[len(g)-1].TsInit
			rng := fmt.Sprintf("%d..%d", first, last)
			path := packetPath(dir, g[0].InstrumentID, first, last, p.seq, s.Extension())
			err := os.MkdirAll(filepath.Dir(path), 0755)
			if err == nil {
				err = s.Save(g, path)
			}
			if err != nil {
				logger.Error("packet save fail", "instrument", g[0].InstrumentID, "range", rng, "error", err)
				results <- saveResult{instrument: g[0].InstrumentID, rng: rng, reason: err.Error()}
				continue
			}
			logger.Debug("packet saved", "path", path, "records", len(g))
			results <- saveResult{ok: true, instrument: g[0].InstrumentID, rng: rng, records: len(g)}
		}
		_ = p.chunk.Release()
	}
}

// splitByInstrument groups records by instrument, keeping first-seen order and ts order.
func splitByInstrument(records []model.QuoteTick) [][]model.QuoteTick {
	idx := make(map[string]int)
	var out [][]model.QuoteTick
	for _, q := range records {
		i, ok := idx[q.InstrumentID]
		if !ok {
			i = len(out)
			idx[q.InstrumentID] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], q)
	}
	return out
}

// packetPath is {dir}/{instrument}/{first}_{last}.{ext}. Packets covering a single timestamp
// carry the chunk sequence since several chunks can share it.
func packetPath(dir, instrument string, first, last uint64, seq int, ext string) string {
	name := fmt.Sprintf("%d_%d.%s", first, last, ext)
	if first == last {
		name = fmt.Sprintf("%d_%d_%d.%s", first, last, seq, ext)
	}
	return filepath.Join(dir, safeName(instrument), name)
}

func safeName(instrument string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_")
	name := r.Replace(instrument)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
