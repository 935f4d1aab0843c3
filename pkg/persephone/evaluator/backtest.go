package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tartarus-sandbox/persephone/pkg/hermes"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"golang.org/x/sync/errgroup"
)

// BacktesterConfig configures a Backtester
type BacktesterConfig struct {
	Store       persephone.HistoryStore
	QuantileSet *losses.QuantileSet // nil means losses.DefaultQuantileSet
	Resolution  time.Duration       // spacing of predictions inside a window, default 15m
	Concurrency int                 // windows scored in parallel, default 4
	Metrics     hermes.Metrics
	Logger      hermes.Logger
}

// Backtester replays stored history: for every step it trains on the
// preceding window, forecasts the step, and scores the forecast against
// what was actually observed.
type Backtester struct {
	store       persephone.HistoryStore
	set         *losses.QuantileSet
	resolution  time.Duration
	concurrency int
	metrics     hermes.Metrics
	logger      hermes.Logger
}

func NewBacktester(cfg BacktesterConfig) (*Backtester, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.QuantileSet == nil {
		cfg.QuantileSet = losses.DefaultQuantileSet()
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = 15 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Metrics == nil {
		cfg.Metrics = hermes.NewNoopMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = hermes.NoopLogger{}
	}

	return &Backtester{
		store:       cfg.Store,
		set:         cfg.QuantileSet,
		resolution:  cfg.Resolution,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}, nil
}

// window is the matched output of one backtest step.
type window struct {
	times   []time.Time
	actuals []float64
	preds   []persephone.Prediction
}

// Run backtests seriesID over [start, end). Each step of stepSize is
// forecast from the trainWindow of history before it.
func (b *Backtester) Run(ctx context.Context, seriesID string, start, end time.Time, trainWindow, stepSize time.Duration) (*EvaluationReport, error) {
	if trainWindow <= 0 || stepSize <= 0 {
		return nil, fmt.Errorf("%w: train window %s, step %s", persephone.ErrInvalidWindow, trainWindow, stepSize)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", persephone.ErrInvalidWindow, start, end)
	}

	obs, err := b.store.Load(ctx, seriesID, start.Add(-trainWindow), end)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%s: %w", seriesID, persephone.ErrNoHistory)
	}
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})

	actualAt := make(map[int64]float64, len(obs))
	for _, o := range obs {
		actualAt[o.Timestamp.Truncate(time.Minute).Unix()] = o.Value
	}

	var starts []time.Time
	for current := start; current.Before(end); current = current.Add(stepSize) {
		starts = append(starts, current)
	}

	windows := make([]window, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, current := range starts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			windows[i] = b.runWindow(obs, actualAt, current, end, trainWindow, stepSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := NewEvaluationReport(seriesID)
	report.WindowStart = start
	report.WindowEnd = end
	report.Windows = len(starts)
	report.ModelConfig = fmt.Sprintf("hybrid(train=%s, step=%s, resolution=%s, quantiles=%s)",
		trainWindow, stepSize, b.resolution, b.set)

	for _, w := range windows {
		report.Timestamps = append(report.Timestamps, w.times...)
		report.Actuals = append(report.Actuals, w.actuals...)
		report.Predictions = append(report.Predictions, w.preds...)
		b.metrics.IncCounter(hermes.MetricBacktestWindows, 1)
	}

	if err := b.score(report); err != nil {
		return nil, err
	}

	b.logger.Info(ctx, "backtest complete", map[string]any{
		"series":  seriesID,
		"windows": report.Windows,
		"matched": len(report.Actuals),
	})
	return report, nil
}

// runWindow forecasts [current, current+stepSize) from the preceding
// trainWindow and keeps the predictions that have an observed actual.
func (b *Backtester) runWindow(obs []*persephone.Observation, actualAt map[int64]float64, current, end time.Time, trainWindow, stepSize time.Duration) window {
	training := extractRange(obs, current.Add(-trainWindow), current)

	horizon := stepSize
	if current.Add(horizon).After(end) {
		horizon = end.Sub(current)
	}

	forecaster := persephone.NewHybridForecaster(b.set)
	forecast := forecaster.Forecast(training, current, horizon, b.resolution)

	var w window
	for _, pred := range forecast.Predictions {
		actual, ok := actualAt[pred.Time.Truncate(time.Minute).Unix()]
		if !ok {
			continue
		}
		w.times = append(w.times, pred.Time)
		w.actuals = append(w.actuals, actual)
		w.preds = append(w.preds, pred)
	}
	return w
}

// score fills the point, calendar and quantile metrics of a report.
func (b *Backtester) score(report *EvaluationReport) error {
	n := len(report.Actuals)
	if n == 0 {
		return nil
	}

	nq := b.set.Len()
	lo, hi := 0, 0
	for j, q := range b.set.Quantiles() {
		if q < b.set.At(lo) {
			lo = j
		}
		if q > b.set.At(hi) {
			hi = j
		}
	}
	medians := make([]float64, n)
	lower := make([]float64, n)
	upper := make([]float64, n)
	predData := make([]float64, 0, n*nq)
	for i, p := range report.Predictions {
		medians[i] = p.Median
		lower[i] = p.Values[lo]
		upper[i] = p.Values[hi]
		predData = append(predData, p.Values...)
	}
	report.OverallMetrics = CalculateMetrics(medians, report.Actuals, lower, upper)

	byHour := make(map[int][]int)
	byDay := make(map[time.Weekday][]int)
	for i, ts := range report.Timestamps {
		byHour[ts.Hour()] = append(byHour[ts.Hour()], i)
		byDay[ts.Weekday()] = append(byDay[ts.Weekday()], i)
	}
	for hour, idx := range byHour {
		report.HourlyMetrics[hour] = subsetMetrics(idx, medians, report.Actuals, lower, upper)
	}
	for day, idx := range byDay {
		report.DailyMetrics[day] = subsetMetrics(idx, medians, report.Actuals, lower, upper)
	}

	actuals, err := tensor.New([]int{1, n}, append([]float64(nil), report.Actuals...))
	if err != nil {
		return err
	}
	preds, err := tensor.New([]int{1, n, nq}, predData)
	if err != nil {
		return err
	}
	scores, err := ScoreQuantiles(b.set, actuals, preds, nil)
	if err != nil {
		return fmt.Errorf("failed to score quantiles: %w", err)
	}
	report.Quantile = scores

	b.metrics.ObserveHistogram(hermes.MetricLoss, scores.MQLoss, hermes.Label{Key: "loss", Value: "mqloss"})
	b.metrics.ObserveHistogram(hermes.MetricLoss, scores.WMQLoss, hermes.Label{Key: "loss", Value: "wmqloss"})
	return nil
}

func subsetMetrics(idx []int, preds, actuals, lower, upper []float64) MetricResult {
	p := make([]float64, len(idx))
	a := make([]float64, len(idx))
	lo := make([]float64, len(idx))
	hi := make([]float64, len(idx))
	for k, i := range idx {
		p[k], a[k], lo[k], hi[k] = preds[i], actuals[i], lower[i], upper[i]
	}
	return CalculateMetrics(p, a, lo, hi)
}

// extractRange returns observations in [start, end).
func extractRange(obs []*persephone.Observation, start, end time.Time) []*persephone.Observation {
	var subset []*persephone.Observation
	for _, o := range obs {
		if !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
			subset = append(subset, o)
		}
	}
	return subset
}
