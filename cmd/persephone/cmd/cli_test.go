package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartarus-sandbox/persephone/pkg/hermes"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
	"gopkg.in/yaml.v3"
)

func executeCommand(args ...string) (string, string, error) {
	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestQuantilesCmd(t *testing.T) {
	out, _, err := executeCommand("quantiles")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"-lo-90", "0.05"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"-median", "0.5"}, strings.Fields(lines[2]))

	out, _, err = executeCommand("quantiles", "--quantile", "0.1", "--quantile", "0.9")
	require.NoError(t, err)
	assert.Contains(t, out, "-lo-80.0")
	assert.Contains(t, out, "-hi-80.0")

	// levels win over explicit quantiles
	out, _, err = executeCommand("quantiles", "--level", "80", "--quantile", "0.3")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	_, _, err = executeCommand("quantiles", "--level", "120")
	assert.Error(t, err)
}

func TestScoreCmd(t *testing.T) {
	input := writeFile(t, "score.yaml", `
y: [[10]]
y_hat: [[8, 10, 13]]
`)

	out, _, err := executeCommand("score", input, "--level", "80")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mqloss: 0.16666"), out)

	out, _, err = executeCommand("score", input, "--level", "80", "--loss", "wmqloss")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "wmqloss: 0.016666"), out)

	ql := writeFile(t, "ql.yaml", `
y: [[1, 2]]
y_hat: [[2, 2]]
`)
	out, _, err = executeCommand("score", ql, "--loss", "ql", "--q", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "ql: 0.25\n", out)

	_, _, err = executeCommand("score", input, "--loss", "crps")
	assert.Error(t, err)

	// [1, 4] cannot be split into three quantiles
	bad := writeFile(t, "bad.yaml", `
y: [[10]]
y_hat: [[1, 2, 3, 4]]
`)
	_, _, err = executeCommand("score", bad, "--level", "80")
	assert.Error(t, err)
}

func TestMixtureNLLCmd(t *testing.T) {
	input := writeFile(t, "gaussian.yaml", `
y: [[0]]
weights: [[[1]]]
means: [[[0]]]
stds: [[[1]]]
`)
	out, _, err := executeCommand("mixture", "nll", input, "--family", "gaussian")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "nll: 0.918938"), out)

	_, _, err = executeCommand("mixture", "nll", input, "--family", "poisson")
	assert.Error(t, err, "lambdas are missing")

	_, _, err = executeCommand("mixture", "nll", input, "--family", "beta")
	assert.Error(t, err)
}

func TestMixtureSampleCmd(t *testing.T) {
	input := writeFile(t, "poisson.yaml", `
weights: [[[0.5, 0.5], [0.5, 0.5]]]
lambdas: [[[2, 20], [5, 50]]]
`)

	args := []string{"mixture", "sample", input, "--samples", "200", "--seed", "7", "--level", "80"}
	first, _, err := executeCommand(args...)
	require.NoError(t, err)
	second, _, err := executeCommand(args...)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var doc struct {
		Names     []string      `yaml:"names"`
		Quantiles [][][]float64 `yaml:"quantiles"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(first), &doc))
	assert.Equal(t, []string{"-lo-80", "-median", "-hi-80"}, doc.Names)
	require.Len(t, doc.Quantiles, 1)
	require.Len(t, doc.Quantiles[0], 2)
	for _, qs := range doc.Quantiles[0] {
		require.Len(t, qs, 3)
		assert.LessOrEqual(t, qs[0], qs[1])
		assert.LessOrEqual(t, qs[1], qs[2])
	}
}

func seedHistory(t *testing.T, dir string, start time.Time, hours int) {
	t.Helper()
	store, err := persephone.NewLocalHistoryStore(dir)
	require.NoError(t, err)
	defer store.Close()

	obs := make([]*persephone.Observation, 0, hours)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		obs = append(obs, &persephone.Observation{
			SeriesID:  "cpu",
			Timestamp: ts,
			Value:     50 + 10*float64(ts.Hour()%6),
		})
	}
	require.NoError(t, store.Save(context.Background(), obs))
}

func TestBacktestCmd(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	storeDir := t.TempDir()
	archiveDir := t.TempDir()
	seedHistory(t, storeDir, start, 100)

	cfg := writeFile(t, "config.yaml", `
store:
  backend: local
  dir: `+storeDir+`
archive:
  backend: local
  dir: `+archiveDir+`
backtest:
  concurrency: 2
`)

	out, _, err := executeCommand("backtest", "--config", cfg,
		"--start", start.Add(48*time.Hour).Format(time.RFC3339),
		"--end", start.Add(72*time.Hour).Format(time.RFC3339),
		"--train-window", "24h", "--step", "12h", "--archive")
	require.NoError(t, err)

	assert.Contains(t, out, "series:      cpu")
	assert.Contains(t, out, "windows:     2")
	assert.Contains(t, out, "predictions: 24")
	assert.Contains(t, out, "mqloss:")
	assert.Contains(t, out, "coverage-80:")
	assert.Contains(t, out, "archived: reports/")

	reports, err := filepath.Glob(filepath.Join(archiveDir, "reports", "*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, _, err = executeCommand("backtest", "--config", cfg, "--series", "mem",
		"--start", start.Add(48*time.Hour).Format(time.RFC3339),
		"--end", start.Add(72*time.Hour).Format(time.RFC3339))
	assert.ErrorIs(t, err, persephone.ErrNoHistory)
}

func TestConfigViewCmd(t *testing.T) {
	cfg := writeFile(t, "config.yaml", `
log_level: DEBUG
levels: [50]
`)
	out, _, err := executeCommand("config", "view", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: DEBUG")
	assert.Contains(t, out, "- 50")

	out, _, err = executeCommand("quantiles", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "-lo-50")

	_, _, err = executeCommand("config", "view", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPlanCmd(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	storeDir := t.TempDir()
	seedHistory(t, storeDir, start, 7*24)
	cfg := writeFile(t, "config.yaml", "store:\n  dir: "+storeDir+"\n")

	out, _, err := executeCommand("plan", "--config", cfg, "--series", "cpu",
		"--at", start.Add(7*24*time.Hour).Format(time.RFC3339), "--max", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "quantile:    0.95 (-hi-90)")
	assert.Contains(t, out, "recommended: ")

	_, _, err = executeCommand("plan", "--config", cfg)
	assert.Error(t, err, "--series is required")

	_, _, err = executeCommand("plan", "--config", cfg, "--series", "cpu", "--target", "2")
	assert.ErrorIs(t, err, persephone.ErrInvalidTarget)
}

func TestMetricsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	hermes.NewPrometheusMetrics(reg).IncCounter(hermes.MetricIngested, 3)

	srv := httptest.NewServer(metricsMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), hermes.MetricIngested+" 3")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestIngestCmd_RequiresQuery(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "store:\n  dir: "+t.TempDir()+"\n")
	_, _, err := executeCommand("ingest", "--config", cfg)
	assert.ErrorContains(t, err, "query is required")
}
