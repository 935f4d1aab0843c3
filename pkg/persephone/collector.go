package persephone

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"golang.org/x/time/rate"
)

// MetricsCollector fetches historical observations from a metrics backend.
type MetricsCollector interface {
	QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]*Observation, error)
}

// PrometheusCollector implements MetricsCollector over the Prometheus HTTP
// API. Each returned stream becomes its own series, identified by its label
// set.
type PrometheusCollector struct {
	api     v1.API
	limiter *rate.Limiter
}

// NewPrometheusCollector creates a collector for address that issues at
// most qps queries per second. qps <= 0 disables the limit.
func NewPrometheusCollector(address string, qps float64) (*PrometheusCollector, error) {
	client, err := api.NewClient(api.Config{
		Address: address,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	return &PrometheusCollector{
		api:     v1.NewAPI(client),
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// QueryRange runs a range query and flattens the resulting matrix.
func (c *PrometheusCollector) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]*Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, _, err := c.api.QueryRange(ctx, query, v1.Range{
		Start: start,
		End:   end,
		Step:  step,
	})
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected result format: %T", result)
	}

	var obs []*Observation
	for _, stream := range matrix {
		id := stream.Metric.String()
		for _, pair := range stream.Values {
			obs = append(obs, &Observation{
				SeriesID:  id,
				Timestamp: pair.Timestamp.Time(),
				Value:     float64(pair.Value),
			})
		}
	}
	return obs, nil
}
