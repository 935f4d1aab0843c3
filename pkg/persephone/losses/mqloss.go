package losses

import (
	"math"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"gonum.org/v1/gonum/floats"
)

// multiQuantile holds the state shared by MQLoss and WMQLoss.
type multiQuantile struct {
	set *QuantileSet
}

func newMultiQuantile(set *QuantileSet) multiQuantile {
	if set == nil {
		set = DefaultQuantileSet()
	}
	return multiQuantile{set: set}
}

// QuantileSet returns the quantiles the loss is evaluated at.
func (m multiQuantile) QuantileSet() *QuantileSet {
	return m.set
}

func (m multiQuantile) OutputSizeMultiplier() int {
	return m.set.Len()
}

func (m multiQuantile) OutputNames() []string {
	return m.set.Names()
}

// AdaptOutput reshapes a raw [..., H*Q] prediction into [..., H, Q].
func (m multiQuantile) AdaptOutput(raw *tensor.Dense) (*tensor.Dense, error) {
	return splitLastAxis("adapt output", raw, m.set.Len())
}

// pinballs evaluates every quantile against y. yHat must have y's shape
// plus a trailing quantile axis. The result is laid out like yHat.
func (m multiQuantile) pinballs(op string, y, yHat *tensor.Dense) ([]float64, error) {
	want := append(y.Shape(), m.set.Len())
	if !tensor.EqualShape(want, yHat.Shape()) {
		return nil, newShapeError(op, "y_hat", want, yHat.Shape())
	}

	nq := m.set.Len()
	yd, hd := y.Data(), yHat.Data()
	out := make([]float64, len(hd))
	for c, obs := range yd {
		for j := 0; j < nq; j++ {
			// error = y_hat - y; q*under + (1-q)*over
			q := m.set.quantiles[j]
			e := hd[c*nq+j] - obs
			out[c*nq+j] = q*math.Max(-e, 0) + (1-q)*math.Max(e, 0)
		}
	}
	return out, nil
}

// MQLoss is the multi-quantile loss: the pinball loss averaged over the
// quantile set, weighted by the mask normalized to sum to one.
type MQLoss struct {
	multiQuantile
}

// NewMQLoss builds the loss. A nil set means DefaultQuantileSet.
func NewMQLoss(set *QuantileSet) *MQLoss {
	return &MQLoss{multiQuantile: newMultiQuantile(set)}
}

// Loss evaluates y [...] against yHat [..., Q]. An all-zero mask yields 0.
func (l *MQLoss) Loss(y, yHat, mask *tensor.Dense) (float64, error) {
	const op = "mqloss"
	losses, err := l.pinballs(op, y, yHat)
	if err != nil {
		return 0, err
	}
	m, err := resolveMask(op, y, mask)
	if err != nil {
		return 0, err
	}

	total := floats.Sum(m)
	nq := l.set.Len()
	var sum float64
	for c, w := range m {
		w = SafeDivide(w, total)
		if w == 0 {
			continue
		}
		for j := 0; j < nq; j++ {
			sum += w * losses[c*nq+j] / float64(nq)
		}
	}
	return sum, nil
}

// WMQLoss is the weighted multi-quantile loss: for every series and
// quantile the masked pinball sum over the horizon is divided by the masked
// sum of |y|, then averaged. It is scale free across series.
type WMQLoss struct {
	multiQuantile
}

// NewWMQLoss builds the loss. A nil set means DefaultQuantileSet.
func NewWMQLoss(set *QuantileSet) *WMQLoss {
	return &WMQLoss{multiQuantile: newMultiQuantile(set)}
}

// Loss evaluates y [..., H] against yHat [..., H, Q]. Leading axes are
// treated as independent series.
func (l *WMQLoss) Loss(y, yHat, mask *tensor.Dense) (float64, error) {
	const op = "wmqloss"
	if y.Dims() == 0 {
		return 0, newShapeError(op, "y", []int{-1}, y.Shape())
	}
	losses, err := l.pinballs(op, y, yHat)
	if err != nil {
		return 0, err
	}
	m, err := resolveMask(op, y, mask)
	if err != nil {
		return 0, err
	}

	horizon := y.Dim(-1)
	if horizon == 0 || y.Len() == 0 {
		return 0, nil
	}
	series := y.Len() / horizon
	nq := l.set.Len()
	yd := y.Data()

	num := make([]float64, series*nq)
	den := make([]float64, series*nq)
	for s := 0; s < series; s++ {
		for h := 0; h < horizon; h++ {
			c := s*horizon + h
			scale := math.Abs(yd[c]) * m[c]
			for j := 0; j < nq; j++ {
				num[s*nq+j] += losses[c*nq+j] * m[c]
				den[s*nq+j] += scale
			}
		}
	}

	ratios := SafeDivideTo(num, num, den)
	return floats.Sum(ratios) / float64(len(ratios)), nil
}
