// Package hermes carries the metrics and logging seams shared by the
// forecasting components. Callers depend on the Metrics and Logger
// interfaces; the CLI decides whether they are backed by Prometheus and slog
// or by no-ops.
package hermes

import "context"

type Label struct {
	Key   string
	Value string
}

type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
}

type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, fields map[string]any)
}

// Metric names emitted by the evaluator and ingestor.
const (
	MetricLoss            = "persephone_loss"
	MetricBacktestWindows = "persephone_backtest_windows_total"
	MetricIngested        = "persephone_ingested_observations_total"
	MetricIngestErrors    = "persephone_ingest_errors_total"
)
