package persephone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tartarus-sandbox/persephone/pkg/hermes"
)

// Ingestor periodically pulls the latest interval from a collector into a
// history store.
type Ingestor struct {
	collector MetricsCollector
	store     HistoryStore
	interval  time.Duration
	step      time.Duration
	query     string
	logger    hermes.Logger
	metrics   hermes.Metrics
}

// IngestorConfig holds configuration for the Ingestor
type IngestorConfig struct {
	Collector MetricsCollector
	Store     HistoryStore
	Interval  time.Duration
	Step      time.Duration // query resolution, defaults to one minute
	Query     string        // PromQL range query
	Logger    hermes.Logger
	Metrics   hermes.Metrics
}

func NewIngestor(config IngestorConfig) (*Ingestor, error) {
	if config.Collector == nil {
		return nil, errors.New("collector is required")
	}
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.Query == "" {
		return nil, errors.New("query is required")
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Step <= 0 {
		config.Step = time.Minute
	}
	if config.Logger == nil {
		config.Logger = hermes.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = hermes.NewNoopMetrics()
	}

	return &Ingestor{
		collector: config.Collector,
		store:     config.Store,
		interval:  config.Interval,
		step:      config.Step,
		query:     config.Query,
		logger:    config.Logger,
		metrics:   config.Metrics,
	}, nil
}

// Start ingests immediately and then once per interval until ctx is done.
// Failed rounds are logged and retried on the next tick.
func (i *Ingestor) Start(ctx context.Context) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	i.run(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			i.run(ctx, now)
		}
	}
}

func (i *Ingestor) run(ctx context.Context, now time.Time) {
	n, err := i.ingest(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		i.metrics.IncCounter(hermes.MetricIngestErrors, 1)
		i.logger.Error(ctx, "ingestion failed", map[string]any{"error": err.Error(), "query": i.query})
		return
	}
	i.metrics.IncCounter(hermes.MetricIngested, float64(n))
	i.logger.Info(ctx, "ingested observations", map[string]any{"count": n})
}

// ingest fetches (now-interval, now] and saves it, returning the number of
// observations stored.
func (i *Ingestor) ingest(ctx context.Context, now time.Time) (int, error) {
	obs, err := i.collector.QueryRange(ctx, i.query, now.Add(-i.interval), now, i.step)
	if err != nil {
		return 0, fmt.Errorf("failed to collect metrics: %w", err)
	}
	if len(obs) == 0 {
		return 0, nil
	}

	if err := i.store.Save(ctx, obs); err != nil {
		return 0, fmt.Errorf("failed to save metrics: %w", err)
	}
	return len(obs), nil
}
