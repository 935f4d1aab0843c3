package persephone

import (
	"errors"
	"time"
)

var (
	// ErrNoHistory indicates a series with no stored observations in range
	ErrNoHistory = errors.New("no history")

	// ErrInvalidWindow indicates a non-positive window or step
	ErrInvalidWindow = errors.New("invalid window")
)

// Observation is one sample of one series.
type Observation struct {
	SeriesID  string    `json:"series_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Forecast is a quantile forecast of one series over a window.
type Forecast struct {
	SeriesID    string        `json:"series_id,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Window      time.Duration `json:"window"`
	Names       []string      `json:"names"`     // one label suffix per quantile
	Quantiles   []float64     `json:"quantiles"` // the forecast's quantile fractions
	Predictions []Prediction  `json:"predictions"`
	Confidence  float64       `json:"confidence"`
}

// Prediction holds one value per forecast quantile, in the order of
// Forecast.Quantiles.
type Prediction struct {
	Time   time.Time `json:"time"`
	Median float64   `json:"median"`
	Values []float64 `json:"values"`
}

// Values extracts the raw values of observations in order.
func Values(obs []*Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Value
	}
	return out
}
