package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/decode"
	"tick-catalog/internal/drain"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/prune"
	"tick-catalog/internal/saver"
	"tick-catalog/internal/slogx"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"SOURCES_FILE", "OUT_DIR", "SAVE_FORMAT", "PROFILE", "CHUNK_SIZE", "WINDOW_START", "WINDOW_END", "LOG_FILE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "sources.yaml", cfg.SourcesFile)
	require.Equal(t, 10000, cfg.ChunkSize)
	require.Equal(t, "parquet", cfg.SaveFormat)
	require.Nil(t, cfg.Window)
	require.Equal(t, filepath.Join("data", "merged", ".progress.json"), cfg.ProgressPath())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "250")
	t.Setenv("PROFILE", "dev")
	t.Setenv("SAVE_FORMAT", "")
	t.Setenv("WINDOW_START", "100")
	t.Setenv("WINDOW_END", "200")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 250, cfg.ChunkSize)
	require.Equal(t, "csv", cfg.SaveFormat)
	require.Equal(t, &catalog.Window{Start: 100, End: 200}, cfg.Window)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv("OUT_DIR")
	t.Cleanup(func() { os.Unsetenv("OUT_DIR") })
	writeTempFile(t, dir, ".env", "OUT_DIR=/tmp/from-dotenv\n")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-dotenv", cfg.OutDir)
}

func TestLoadConfigRejectsBadWindow(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WINDOW_START", "9")
	t.Setenv("WINDOW_END", "1")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("WINDOW_START", "x")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fx"), 0755))
	writeTempFile(t, dir, "fx/EURUSD.parquet", "")
	writeTempFile(t, dir, "fx/GBPUSD.parquet", "")
	path := writeTempFile(t, dir, "sources.yaml", `
chunk_size: 500
sources:
  - name: usdjpy
    path: /data/USDJPY.parquet
    filter: {op: after, ts: 1000}
    window: {start: 1001, end: 2000}
  - name: fx
    path: fx/*.parquet
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, 500, m.ChunkSize)
	require.Len(t, m.Sources, 3)
	require.Equal(t, "fx/EURUSD", m.Sources[1].Name)
	require.Equal(t, filepath.Join(dir, "fx", "GBPUSD.parquet"), m.Sources[2].Path)

	def := &catalog.Window{Start: 5, End: 6}
	specs := m.Specs(def)
	require.Equal(t, prune.AfterTs(1000), specs[0].Query.Filter)
	require.Equal(t, &catalog.Window{Start: 1001, End: 2000}, specs[0].Query.Window)
	require.Equal(t, def, specs[1].Query.Window)
	require.Equal(t, prune.NoFilter(), specs[2].Query.Filter)
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":     "sources: []\n",
		"no path":   "sources:\n  - name: a\n",
		"duplicate": "sources:\n  - {name: a, path: /x}\n  - {name: a, path: /y}\n",
		"filter":    "sources:\n  - {path: /x, filter: {op: between}}\n",
		"window":    "sources:\n  - {path: /x, window: {start: 9, end: 1}}\n",
		"no match":  "sources:\n  - {path: nothing/*.parquet}\n",
		"bad yaml":  "sources: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeTempFile(t, dir, "m.yaml", content))
			require.Error(t, err)
		})
	}
	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestProvidePacketSaver(t *testing.T) {
	ps, err := ProvidePacketSaver(&Config{SaveFormat: "json"})
	require.NoError(t, err)
	require.Equal(t, "json", ps.Extension())

	ps, err = ProvidePacketSaver(&Config{SaveFormat: "none"})
	require.NoError(t, err)
	require.Nil(t, ps)

	_, err = ProvidePacketSaver(&Config{SaveFormat: "xml"})
	require.Error(t, err)
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	ledger := metrics.NewLedger(reg)
	ledger.FileOpened()

	srv := newMetricsServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tickcat_open_files 1")
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	for id, ts := range map[string][]uint64{"A": {1, 3, 5}, "B": {2, 4, 6}} {
		qs := make([]model.QuoteTick, len(ts))
		for i, v := range ts {
			qs[i] = model.QuoteTick{
				InstrumentID: id,
				BidPrice:     model.NewPrice(100, 1),
				AskPrice:     model.NewPrice(101, 1),
				BidSize:      model.NewQuantity(1, 0),
				AskSize:      model.NewQuantity(1, 0),
				TsEvent:      v,
				TsInit:       v,
			}
		}
		md := decode.Metadata{InstrumentID: id, PricePrecision: 1}
		require.NoError(t, saver.WriteFile(filepath.Join(dir, id+".parquet"), md, qs))
	}
	manifest := writeTempFile(t, dir, "sources.yaml", "sources:\n  - path: A.parquet\n  - path: B.parquet\n")
	cfg := &Config{SourcesFile: manifest, OutDir: filepath.Join(dir, "out"), SaveFormat: "csv", ChunkSize: 2, SaveWorkers: 1}

	logger := slogx.NewDefault("warn")
	ledger := metrics.NewLedger(nil)
	m, err := ProvideManifest(cfg)
	require.NoError(t, err)
	cat, cleanup, err := ProvideCatalog(cfg, m, logger, ledger)
	require.NoError(t, err)
	defer cleanup()
	ps, err := ProvidePacketSaver(cfg)
	require.NoError(t, err)

	require.NoError(t, Run(cfg, cat, ps, logger))
	require.True(t, ledger.Outstanding().Zero())
	p, ok := drain.ReadProgress(cfg.ProgressPath())
	require.True(t, ok)
	require.Equal(t, 6, p.Records)
	require.FileExists(t, filepath.Join(cfg.OutDir, "A", "3_3_2.csv"))
}
