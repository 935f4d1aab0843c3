package persephone

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
)

// ErrInvalidTarget indicates a target utilization outside (0, 1].
var ErrInvalidTarget = errors.New("invalid target utilization")

// CapacityBounds clamps a recommendation. A zero Max means unbounded.
type CapacityBounds struct {
	Min int
	Max int
}

// CapacityPlan sizes capacity for the upper quantile of a forecast.
type CapacityPlan struct {
	SeriesID    string    `json:"series_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Quantile    float64   `json:"quantile"`
	Name        string    `json:"name"`
	Current     float64   `json:"current"`
	PeakDemand  float64   `json:"peak_demand"`
	Recommended int       `json:"recommended"`
	Reason      string    `json:"reason"`
	Confidence  float64   `json:"confidence"`
}

// CapacityPlanner provisions against the highest quantile of the set below
// 1, so a wider interval level plans more headroom.
type CapacityPlanner struct {
	forecaster *HybridForecaster
	bounds     CapacityBounds
}

func NewCapacityPlanner(set *losses.QuantileSet, bounds CapacityBounds) *CapacityPlanner {
	return &CapacityPlanner{
		forecaster: NewHybridForecaster(set),
		bounds:     bounds,
	}
}

// Plan forecasts horizon from now and recommends the units needed to keep
// the peak upper-quantile demand at targetUtil of each unit.
func (p *CapacityPlanner) Plan(history []*Observation, now time.Time, horizon, step time.Duration, targetUtil float64) (*CapacityPlan, error) {
	if !(targetUtil > 0 && targetUtil <= 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, targetUtil)
	}
	if horizon <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: horizon %s, step %s", ErrInvalidWindow, horizon, step)
	}

	set := p.forecaster.QuantileSet()
	// every set holds a fraction below 1: levels add the median and
	// explicit quantiles lie in (0, 1)
	upper := -1
	for i, q := range set.Quantiles() {
		if q < 1 && (upper < 0 || q > set.At(upper)) {
			upper = i
		}
	}
	plan := &CapacityPlan{
		GeneratedAt: now,
		Quantile:    set.At(upper),
		Name:        set.Names()[upper],
	}

	if len(history) == 0 {
		plan.Reason = "No historical data available"
		plan.Recommended = p.clamp(1, plan)
		plan.Confidence = 0.3
		return plan, nil
	}

	latest := history[len(history)-1]
	plan.SeriesID = latest.SeriesID
	plan.Current = latest.Value

	forecast := p.forecaster.Forecast(history, now, horizon, step)
	for _, pred := range forecast.Predictions {
		v := pred.Values[upper]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		plan.PeakDemand = math.Max(plan.PeakDemand, v)
	}
	plan.Confidence = forecast.Confidence

	plan.Reason = "Based on forecasted demand and target utilization"
	plan.Recommended = p.clamp(int(math.Ceil(plan.PeakDemand/targetUtil)), plan)
	return plan, nil
}

func (p *CapacityPlanner) clamp(n int, plan *CapacityPlan) int {
	switch {
	case n < p.bounds.Min:
		plan.Reason = "Increased to minimum"
		n = p.bounds.Min
	case p.bounds.Max > 0 && n > p.bounds.Max:
		plan.Reason = "Capped at maximum"
		n = p.bounds.Max
	}
	return max(n, 1)
}
