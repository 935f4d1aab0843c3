package evaluator

import (
	"time"

	"github.com/google/uuid"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
)

// EvaluationReport contains the results of a backtest
type EvaluationReport struct {
	ID          string    `json:"id"`
	SeriesID    string    `json:"series_id"`
	GeneratedAt time.Time `json:"generated_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	ModelConfig string    `json:"model_config"`
	Windows     int       `json:"windows"`

	// OverallMetrics scores the median against the widest interval.
	OverallMetrics MetricResult                  `json:"overall_metrics"`
	Quantile       *QuantileScores               `json:"quantile,omitempty"`
	DailyMetrics   map[time.Weekday]MetricResult `json:"daily_metrics"`
	HourlyMetrics  map[int]MetricResult          `json:"hourly_metrics"` // 0-23

	Timestamps  []time.Time             `json:"timestamps"`
	Actuals     []float64               `json:"actuals"`
	Predictions []persephone.Prediction `json:"predictions"`
}

// NewEvaluationReport creates an empty report with a fresh ID.
func NewEvaluationReport(seriesID string) *EvaluationReport {
	return &EvaluationReport{
		ID:            uuid.NewString(),
		SeriesID:      seriesID,
		GeneratedAt:   time.Now().UTC(),
		DailyMetrics:  make(map[time.Weekday]MetricResult),
		HourlyMetrics: make(map[int]MetricResult),
	}
}
