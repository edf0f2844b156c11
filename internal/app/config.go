package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/drain"
	"tick-catalog/internal/reader"
)

// Config holds application configuration from env
type Config struct {
	SourcesFile string
	OutDir      string
	SaveFormat  string // csv | json | parquet | none
	LogLevel    string // debug | info | warn | error
	LogFile     string
	MetricsAddr string
	ChunkSize   int
	SaveWorkers int
	Heartbeat   time.Duration
	CheckOrder  bool
	// Window applies to every source that does not set its own.
	Window *catalog.Window
}

// LoadConfig reads config from environment, after loading .env if present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "error", err)
	}
	cfg := &Config{
		SourcesFile: getEnv("SOURCES_FILE", "sources.yaml"),
		OutDir:      getEnv("OUT_DIR", filepath.Join("data", "merged")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		ChunkSize:   getEnvInt("CHUNK_SIZE", reader.DefaultChunkSize),
		SaveWorkers: getEnvInt("SAVE_WORKERS", 2),
		Heartbeat:   time.Duration(getEnvInt("HEARTBEAT_SEC", 30)) * time.Second,
		CheckOrder:  getEnv("CHECK_ORDER", "false") == "true",
	}
	cfg.SaveFormat = getSaveFormat()

	start, hasStart := os.LookupEnv("WINDOW_START")
	end, hasEnd := os.LookupEnv("WINDOW_END")
	if hasStart || hasEnd {
		w := &catalog.Window{End: ^uint64(0)}
		var err error
		if hasStart {
			if w.Start, err = strconv.ParseUint(start, 10, 64); err != nil {
				return nil, fmt.Errorf("WINDOW_START: %w", err)
			}
		}
		if hasEnd {
			if w.End, err = strconv.ParseUint(end, 10, 64); err != nil {
				return nil, fmt.Errorf("WINDOW_END: %w", err)
			}
		}
		if w.Start > w.End {
			return nil, fmt.Errorf("WINDOW_START %d after WINDOW_END %d", w.Start, w.End)
		}
		cfg.Window = w
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getSaveFormat() string {
	if v := os.Getenv("SAVE_FORMAT"); v != "" {
		return v
	}
	switch os.Getenv("PROFILE") {
	case "dev", "development":
		return "csv"
	case "prod", "production", "":
		return "parquet"
	default:
		return "parquet"
	}
}

// ProgressPath returns path to .progress.json
func (c *Config) ProgressPath() string {
	return filepath.Join(c.OutDir, drain.ProgressFile)
}
