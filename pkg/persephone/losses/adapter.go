package losses

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
)

// OutputAdapter is the contract between a loss and the model producing its
// inputs: how many raw outputs per timestep the model emits, how to label
// them, and how to reshape the model's flat trailing axis.
type OutputAdapter interface {
	OutputSizeMultiplier() int
	OutputNames() []string
	AdaptOutput(raw *tensor.Dense) (*tensor.Dense, error)
}

var (
	_ OutputAdapter = (*QuantileLoss)(nil)
	_ OutputAdapter = (*MQLoss)(nil)
	_ OutputAdapter = (*WMQLoss)(nil)
	_ OutputAdapter = (*PoissonMixture)(nil)
	_ OutputAdapter = (*GaussianMixture)(nil)
)

// splitLastAxis turns [..., L] into [..., L/m, m].
func splitLastAxis(op string, raw *tensor.Dense, m int) (*tensor.Dense, error) {
	if raw.Dims() == 0 {
		return nil, newShapeError(op, "y_pred", []int{m}, raw.Shape())
	}
	shape := raw.Shape()
	last := shape[len(shape)-1]
	if last%m != 0 {
		return nil, fmt.Errorf("%s: last axis %d is not a multiple of %d: %w", op, last, m, ErrShapeMismatch)
	}
	out := append(shape[:len(shape)-1:len(shape)-1], last/m, m)
	return raw.Reshape(out...)
}

// resolveMask returns the mask weights for y, defaulting to all ones.
func resolveMask(op string, y, mask *tensor.Dense) ([]float64, error) {
	if mask == nil {
		return tensor.Ones(y.Shape()...).Data(), nil
	}
	if !tensor.SameShape(y, mask) {
		return nil, newShapeError(op, "mask", y.Shape(), mask.Shape())
	}
	for i, m := range mask.Data() {
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%s: mask[%d]=%v: %w", op, i, m, ErrInvalidMask)
		}
	}
	return mask.Data(), nil
}

// pinball is the quantile loss of a single residual y - yHat at fraction q.
func pinball(q, y, yHat float64) float64 {
	delta := y - yHat
	return math.Max(q*delta, (q-1)*delta)
}

func formatFraction(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
