package drain

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// ProgressFile is written into the output directory while a run drains.
const ProgressFile = ".progress.json"

// Progress is the latest position of a run.
type Progress struct {
	RunID      string    `json:"run_id"`
	Chunks     int       `json:"chunks"`
	Records    int       `json:"records"`
	LastTsInit uint64    `json:"last_ts_init"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReadProgress loads a progress file. ok is false when it is missing or unreadable.
func ReadProgress(path string) (p Progress, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Progress{}, false
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, false
	}
	return p, true
}

// RunProgressWriter persists every update it receives to path (run as goroutine).
func RunProgressWriter(path string, updates <-chan Progress, logger *slog.Logger) {
	for u := range updates {
		data, err := json.MarshalIndent(u, "", "  ")
		if err != nil {
			logger.Warn("progress marshal error", "error", err)
			continue
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.Warn("progress write error", "error", err)
		}
	}
}
