package persephone

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
)

func TestCapacityPlanner_Plan(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	history := hourlySeries(start, 7*24, func(time.Time) float64 { return 40 })
	now := start.Add(7 * 24 * time.Hour)

	planner := NewCapacityPlanner(nil, CapacityBounds{})
	plan, err := planner.Plan(history, now, time.Hour, 15*time.Minute, 0.3)
	require.NoError(t, err)

	assert.Equal(t, "cpu", plan.SeriesID)
	assert.Equal(t, "-hi-90", plan.Name)
	assert.InDelta(t, 0.95, plan.Quantile, 1e-12)
	assert.Equal(t, 40.0, plan.Current)
	assert.InDelta(t, 40.0, plan.PeakDemand, 1e-9)
	assert.Equal(t, 134, plan.Recommended)
	assert.Equal(t, "Based on forecasted demand and target utilization", plan.Reason)
}

func TestCapacityPlanner_WiderLevelPlansMoreHeadroom(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	history := hourlySeries(start, 14*24, func(ts time.Time) float64 {
		return 50 + float64(ts.Hour()%5)*10
	})
	now := start.Add(14 * 24 * time.Hour)

	narrow, err := losses.FromLevels([]int{50})
	require.NoError(t, err)
	wide, err := losses.FromLevels([]int{98})
	require.NoError(t, err)

	p50, err := NewCapacityPlanner(narrow, CapacityBounds{}).Plan(history, now, 2*time.Hour, 15*time.Minute, 0.8)
	require.NoError(t, err)
	p98, err := NewCapacityPlanner(wide, CapacityBounds{}).Plan(history, now, 2*time.Hour, 15*time.Minute, 0.8)
	require.NoError(t, err)

	assert.Greater(t, p98.PeakDemand, p50.PeakDemand)
	assert.GreaterOrEqual(t, p98.Recommended, p50.Recommended)
}

func TestCapacityPlanner_Bounds(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	history := hourlySeries(start, 48, func(time.Time) float64 { return 100 })
	now := start.Add(48 * time.Hour)

	plan, err := NewCapacityPlanner(nil, CapacityBounds{Max: 10}).Plan(history, now, time.Hour, 15*time.Minute, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 10, plan.Recommended)
	assert.Equal(t, "Capped at maximum", plan.Reason)

	plan, err = NewCapacityPlanner(nil, CapacityBounds{Min: 500}).Plan(history, now, time.Hour, 15*time.Minute, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 500, plan.Recommended)
	assert.Equal(t, "Increased to minimum", plan.Reason)
}

func TestCapacityPlanner_NoHistory(t *testing.T) {
	plan, err := NewCapacityPlanner(nil, CapacityBounds{}).Plan(nil, time.Now(), time.Hour, 15*time.Minute, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Recommended)
	assert.Equal(t, "No historical data available", plan.Reason)
	assert.Equal(t, 0.3, plan.Confidence)

	plan, err = NewCapacityPlanner(nil, CapacityBounds{Min: 3}).Plan(nil, time.Now(), time.Hour, 15*time.Minute, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Recommended)
}

func TestCapacityPlanner_Errors(t *testing.T) {
	planner := NewCapacityPlanner(nil, CapacityBounds{})
	now := time.Now()

	for _, target := range []float64{0, -0.5, 1.5} {
		_, err := planner.Plan(nil, now, time.Hour, time.Minute, target)
		assert.ErrorIs(t, err, ErrInvalidTarget)
	}
	_, err := planner.Plan(nil, now, 0, time.Minute, 0.5)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCapacityPlanner_FullLevelUsesFiniteQuantile(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	history := hourlySeries(start, 14*24, func(ts time.Time) float64 {
		return 50 + float64(ts.Hour()%5)*10
	})
	now := start.Add(14 * 24 * time.Hour)

	set, err := losses.FromLevels([]int{100, 80})
	require.NoError(t, err)

	plan, err := NewCapacityPlanner(set, CapacityBounds{}).Plan(history, now, time.Hour, 15*time.Minute, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "-hi-80", plan.Name)
	assert.InDelta(t, 0.9, plan.Quantile, 1e-12)
	assert.False(t, math.IsInf(plan.PeakDemand, 0))
	assert.Greater(t, plan.PeakDemand, 0.0)
	assert.Equal(t, int(math.Ceil(plan.PeakDemand/0.5)), plan.Recommended)
}
