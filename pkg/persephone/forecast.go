package persephone

import (
	"math"
	"time"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PatternDetector learns hour-of-day and day-of-week profiles of a series.
type PatternDetector struct {
	hourly   [24]float64
	daily    [7]float64
	baseline float64
}

// NewPatternDetector creates a pattern detector
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

// AnalyzePatterns fits the hourly and daily profiles to history.
func (p *PatternDetector) AnalyzePatterns(history []*Observation) *PatternAnalysis {
	if len(history) == 0 {
		return &PatternAnalysis{}
	}

	p.hourly = [24]float64{}
	p.daily = [7]float64{}
	p.baseline = 0

	var hourlyCounts [24]int
	var dailyCounts [7]int
	var total float64

	for _, o := range history {
		hour := o.Timestamp.Hour()
		weekday := int(o.Timestamp.Weekday())

		p.hourly[hour] += o.Value
		hourlyCounts[hour]++
		p.daily[weekday] += o.Value
		dailyCounts[weekday]++
		total += o.Value
	}

	for i := range p.hourly {
		if hourlyCounts[i] > 0 {
			p.hourly[i] /= float64(hourlyCounts[i])
		}
	}
	for i := range p.daily {
		if dailyCounts[i] > 0 {
			p.daily[i] /= float64(dailyCounts[i])
		}
	}
	p.baseline = total / float64(len(history))

	analysis := &PatternAnalysis{
		HourlyPattern: append([]float64(nil), p.hourly[:]...),
		DailyPattern:  append([]float64(nil), p.daily[:]...),
		Baseline:      p.baseline,
	}

	// peak hours sit 20% above baseline
	threshold := p.baseline * 1.2
	for hour, v := range p.hourly {
		if v >= threshold && hourlyCounts[hour] > 0 {
			analysis.PeakHours = append(analysis.PeakHours, hour)
		}
	}

	analysis.Confidence = p.fitConfidence(history)
	return analysis
}

// fitConfidence maps the in-sample RMSE of the profile to (0, 0.95].
func (p *PatternDetector) fitConfidence(history []*Observation) float64 {
	if len(history) < 10 {
		return 0.3
	}

	var sq float64
	for _, o := range history {
		fitted := (p.hourly[o.Timestamp.Hour()] + p.daily[int(o.Timestamp.Weekday())]) / 2
		e := o.Value - fitted
		sq += e * e
	}
	rmse := math.Sqrt(sq / float64(len(history)))
	return math.Min(1/(1+rmse), 0.95)
}

// Predict returns the profile value at t, falling back to the baseline when
// the profile is weak there.
func (p *PatternDetector) Predict(t time.Time) float64 {
	v := 0.7*p.hourly[t.Hour()] + 0.3*p.daily[int(t.Weekday())]
	if v < p.baseline*0.5 {
		return p.baseline
	}
	return v
}

// PatternAnalysis contains detected patterns
type PatternAnalysis struct {
	HourlyPattern []float64 // mean per hour (0-23)
	DailyPattern  []float64 // mean per weekday (Sunday=0)
	Baseline      float64
	PeakHours     []int
	Confidence    float64 // 0-1
}

// ExponentialSmoothingPredictor tracks a single smoothed level.
type ExponentialSmoothingPredictor struct {
	alpha float64
	level float64
}

// NewExponentialSmoothingPredictor creates a predictor with the given
// smoothing factor. Values outside (0, 1) fall back to 0.3.
func NewExponentialSmoothingPredictor(alpha float64) *ExponentialSmoothingPredictor {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.3
	}
	return &ExponentialSmoothingPredictor{alpha: alpha}
}

func (p *ExponentialSmoothingPredictor) Train(history []*Observation) {
	if len(history) == 0 {
		return
	}
	p.level = history[0].Value
	for _, o := range history[1:] {
		p.Update(o.Value)
	}
}

func (p *ExponentialSmoothingPredictor) Predict() float64 {
	return p.level
}

func (p *ExponentialSmoothingPredictor) Update(actual float64) {
	p.level = p.alpha*actual + (1-p.alpha)*p.level
}

// QuantileCalculator spreads a point forecast into quantiles of a Normal
// whose scale is the history's population standard deviation.
type QuantileCalculator struct {
	set *losses.QuantileSet
}

func NewQuantileCalculator(set *losses.QuantileSet) *QuantileCalculator {
	if set == nil {
		set = losses.DefaultQuantileSet()
	}
	return &QuantileCalculator{set: set}
}

// Quantiles returns one value per quantile of the set. They are
// non-decreasing in the quantile fraction. With fewer than two observations
// or a flat history every quantile equals the point forecast.
func (c *QuantileCalculator) Quantiles(history []float64, point float64) []float64 {
	out := make([]float64, c.set.Len())
	var sigma float64
	if len(history) >= 2 {
		_, sigma = stat.PopMeanStdDev(history, nil)
	}
	if !(sigma > 0) {
		for i := range out {
			out[i] = point
		}
		return out
	}

	dist := distuv.Normal{Mu: point, Sigma: sigma}
	for i, q := range c.set.Quantiles() {
		out[i] = dist.Quantile(q)
	}
	return out
}

// HybridForecaster blends the pattern profile with exponential smoothing
// and emits quantile forecasts.
type HybridForecaster struct {
	patterns  *PatternDetector
	smoothing *ExponentialSmoothingPredictor
	quantiles *QuantileCalculator
	set       *losses.QuantileSet
}

// NewHybridForecaster creates a forecaster for the given quantile set. A
// nil set means losses.DefaultQuantileSet.
func NewHybridForecaster(set *losses.QuantileSet) *HybridForecaster {
	if set == nil {
		set = losses.DefaultQuantileSet()
	}
	return &HybridForecaster{
		patterns:  NewPatternDetector(),
		smoothing: NewExponentialSmoothingPredictor(0.3),
		quantiles: NewQuantileCalculator(set),
		set:       set,
	}
}

// QuantileSet returns the quantiles every prediction carries.
func (f *HybridForecaster) QuantileSet() *losses.QuantileSet {
	return f.set
}

// Forecast predicts the window following start at the given step. The
// first prediction is at start. Empty history yields no predictions.
func (f *HybridForecaster) Forecast(history []*Observation, start time.Time, window, step time.Duration) *Forecast {
	fc := &Forecast{
		GeneratedAt: start,
		Window:      window,
		Names:       f.set.Names(),
		Quantiles:   f.set.Quantiles(),
		Predictions: []Prediction{},
	}
	if len(history) == 0 || step <= 0 {
		return fc
	}
	fc.SeriesID = history[len(history)-1].SeriesID

	analysis := f.patterns.AnalyzePatterns(history)
	f.smoothing.Train(history)
	values := Values(history)
	median := f.set.Median()

	steps := int(window / step)
	for i := 0; i < steps; i++ {
		t := start.Add(time.Duration(i) * step)
		point := 0.6*f.patterns.Predict(t) + 0.4*f.smoothing.Predict()

		p := Prediction{
			Time:   t,
			Median: point,
			Values: f.quantiles.Quantiles(values, point),
		}
		if median >= 0 {
			p.Median = p.Values[median]
		}
		fc.Predictions = append(fc.Predictions, p)
	}

	fc.Confidence = analysis.Confidence
	return fc
}
