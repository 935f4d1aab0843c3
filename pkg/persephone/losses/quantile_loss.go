package losses

import (
	"fmt"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
)

// QuantileLoss is the pinball loss at a single quantile fraction.
type QuantileLoss struct {
	q float64
}

// NewQuantileLoss validates q and builds the loss.
func NewQuantileLoss(q float64) (*QuantileLoss, error) {
	if !(q > 0 && q < 1) {
		return nil, fmt.Errorf("%w: %v not in (0, 1)", ErrInvalidQuantile, q)
	}
	return &QuantileLoss{q: q}, nil
}

// Q returns the quantile fraction.
func (l *QuantileLoss) Q() float64 {
	return l.q
}

func (l *QuantileLoss) OutputSizeMultiplier() int {
	return 1
}

func (l *QuantileLoss) OutputNames() []string {
	return []string{"_ql" + formatFraction(l.q)}
}

func (l *QuantileLoss) AdaptOutput(raw *tensor.Dense) (*tensor.Dense, error) {
	return raw, nil
}

// Loss returns mean(max(q*d, (q-1)*d) * mask) with d = y - yHat. Masked
// elements still count in the denominator.
func (l *QuantileLoss) Loss(y, yHat, mask *tensor.Dense) (float64, error) {
	if !tensor.SameShape(y, yHat) {
		return 0, newShapeError("quantile loss", "y_hat", y.Shape(), yHat.Shape())
	}
	m, err := resolveMask("quantile loss", y, mask)
	if err != nil {
		return 0, err
	}
	if y.Len() == 0 {
		return 0, nil
	}

	var sum float64
	yd, hd := y.Data(), yHat.Data()
	for i := range yd {
		sum += pinball(l.q, yd[i], hd[i]) * m[i]
	}
	return sum / float64(len(yd)), nil
}
