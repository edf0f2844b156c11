package drain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportFile is written into the output directory when a run ends.
const ReportFile = ".lastrun.json"

// Run statuses.
const (
	StatusOK       = "ok"
	StatusCanceled = "canceled"
	StatusFailed   = "failed"
)

type failedEntry struct {
	Instrument string `json:"instrument"`
	Range      string `json:"range"`
	Reason     string `json:"reason"`
}

// Report summarizes one run.
type Report struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Chunks      int            `json:"chunks"`
	Records     int            `json:"records"`
	FirstTsInit uint64         `json:"first_ts_init"`
	LastTsInit  uint64         `json:"last_ts_init"`
	Packets     int            `json:"packets"`
	Instruments map[string]int `json:"instruments"`
	Failed      []failedEntry  `json:"failed,omitempty"`
}

func writeRunReport(dir string, r Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	p := filepath.Join(dir, ReportFile)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return err
	}
	slog.Info("report wrote", "path", p, "status", r.Status, "packets", r.Packets, "failed", len(r.Failed))
	return nil
}

func joinFailedReasons(failedList []failedEntry) string {
	if len(failedList) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failedList {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Instrument)
		b.WriteString(" ")
		b.WriteString(f.Range)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failedList) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failedList)-5))
			break
		}
	}
	return b.String()
}
