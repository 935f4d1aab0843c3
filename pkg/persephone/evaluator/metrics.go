package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
)

// MetricResult holds point-forecast error metrics
type MetricResult struct {
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	MAPE     float64 `json:"mape"`     // percent
	Coverage float64 `json:"coverage"` // percent of actuals inside [lower, upper]
}

// CalculateMetrics computes accuracy metrics for aligned predictions and
// actuals. Bounds are optional; without them Coverage is 0.
func CalculateMetrics(predictions, actuals, lowerBounds, upperBounds []float64) MetricResult {
	if len(predictions) != len(actuals) || len(predictions) == 0 {
		return MetricResult{}
	}

	var sumAbs, sumSq, sumPct float64
	var covered int
	n := float64(len(predictions))

	for i, pred := range predictions {
		act := actuals[i]
		e := act - pred
		sumAbs += math.Abs(e)
		sumSq += e * e
		if act != 0 {
			sumPct += math.Abs(e / act)
		}
		if i < len(lowerBounds) && i < len(upperBounds) && act >= lowerBounds[i] && act <= upperBounds[i] {
			covered++
		}
	}

	result := MetricResult{
		MAE:  sumAbs / n,
		RMSE: math.Sqrt(sumSq / n),
		MAPE: sumPct / n * 100,
	}
	if len(lowerBounds) > 0 {
		result.Coverage = float64(covered) / n * 100
	}
	return result
}

// QuantileScores are the probabilistic scores of a quantile forecast.
type QuantileScores struct {
	MQLoss      float64            `json:"mqloss"`
	WMQLoss     float64            `json:"wmqloss"`
	Names       []string           `json:"names"`
	PerQuantile []float64          `json:"per_quantile"` // pinball loss at each quantile
	Coverage    map[string]float64 `json:"coverage"`     // percent inside each -lo/-hi pair, keyed by level
}

// ScoreQuantiles scores preds [B, H, Q] against actuals [B, H] under the
// quantile set. A nil mask scores every cell.
func ScoreQuantiles(set *losses.QuantileSet, actuals, preds, mask *tensor.Dense) (*QuantileScores, error) {
	mq, err := losses.NewMQLoss(set).Loss(actuals, preds, mask)
	if err != nil {
		return nil, err
	}
	wmq, err := losses.NewWMQLoss(set).Loss(actuals, preds, mask)
	if err != nil {
		return nil, err
	}

	nq := set.Len()
	scores := &QuantileScores{
		MQLoss:      mq,
		WMQLoss:     wmq,
		Names:       set.Names(),
		PerQuantile: make([]float64, nq),
		Coverage:    make(map[string]float64),
	}

	column := tensor.Zeros(actuals.Shape()...)
	for j := 0; j < nq; j++ {
		ql, err := losses.NewQuantileLoss(set.At(j))
		if err != nil {
			return nil, fmt.Errorf("quantile %s: %w", scores.Names[j], err)
		}
		extractQuantile(column, preds, j, nq)
		if scores.PerQuantile[j], err = ql.Loss(actuals, column, mask); err != nil {
			return nil, err
		}
	}

	for lo, name := range scores.Names {
		level, ok := strings.CutPrefix(name, "-lo-")
		if !ok {
			continue
		}
		hi := indexOfName(scores.Names, "-hi-"+level)
		if hi < 0 {
			continue
		}
		scores.Coverage[level] = coverage(actuals, preds, mask, lo, hi, nq)
	}
	return scores, nil
}

func extractQuantile(dst, preds *tensor.Dense, j, nq int) {
	pd := preds.Data()
	for c := range dst.Data() {
		dst.Data()[c] = pd[c*nq+j]
	}
}

func indexOfName(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

// coverage is the percent of unmasked cells whose actual lies in the
// interval between quantiles lo and hi.
func coverage(actuals, preds, mask *tensor.Dense, lo, hi, nq int) float64 {
	ad, pd := actuals.Data(), preds.Data()
	var inside, total int
	for c, y := range ad {
		if mask != nil && mask.Data()[c] == 0 {
			continue
		}
		total++
		if y >= pd[c*nq+lo] && y <= pd[c*nq+hi] {
			inside++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inside) / float64(total) * 100
}
