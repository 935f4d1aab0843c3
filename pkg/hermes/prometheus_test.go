package hermes

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.IncCounter("test_counter", 1, Label{Key: "tag", Value: "A"})
	m.IncCounter("test_counter", 2, Label{Key: "tag", Value: "A"})
	m.ObserveHistogram("test_histogram", 0.5, Label{Key: "tag", Value: "B"})
	m.SetGauge("test_gauge", 10, Label{Key: "tag", Value: "C"})
	m.SetGauge("test_gauge", 20, Label{Key: "tag", Value: "C"})

	assert.Contains(t, m.counters, "test_counter")
	assert.Contains(t, m.histograms, "test_histogram")
	assert.Contains(t, m.gauges, "test_gauge")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.counters["test_counter"].WithLabelValues("A")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.gauges["test_gauge"].WithLabelValues("C")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestPrometheusMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusMetrics(reg)
	b := NewPrometheusMetrics(reg)

	a.IncCounter(MetricBacktestWindows, 1)
	b.IncCounter(MetricBacktestWindows, 1)

	count, err := testutil.GatherAndCount(reg, MetricBacktestWindows)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2.0, testutil.ToFloat64(b.counters[MetricBacktestWindows]))
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(NewJSONLogger("warn", &buf))

	logger.Info(context.Background(), "dropped", map[string]any{"k": 1})
	logger.Warn(context.Background(), "kept", map[string]any{"series": "up"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "up", entry["series"])
}

func TestNewJSONLogger_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger("chatty", &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
