package losses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
)

func rows(t *testing.T, r ...[]float64) *tensor.Dense {
	t.Helper()
	d, err := tensor.FromRows(r)
	require.NoError(t, err)
	return d
}

func cube(t *testing.T, c ...[][]float64) *tensor.Dense {
	t.Helper()
	d, err := tensor.FromCube(c)
	require.NoError(t, err)
	return d
}

func TestQuantileLoss_MedianIsHalfMAE(t *testing.T) {
	ql, err := NewQuantileLoss(0.5)
	require.NoError(t, err)

	y := rows(t, []float64{1, 2, 3}, []float64{4, 5, 6})
	yHat := rows(t, []float64{2, 2, 5}, []float64{4, 8, 5})

	// |errors| = 1 0 2 0 3 1, MAE = 7/6
	loss, err := ql.Loss(y, yHat, nil)
	require.NoError(t, err)
	assert.InDelta(t, 7.0/12.0, loss, 1e-12)
}

func TestQuantileLoss_Asymmetry(t *testing.T) {
	ql, err := NewQuantileLoss(0.9)
	require.NoError(t, err)

	y := rows(t, []float64{1, 0})
	yHat := rows(t, []float64{0, 1})

	loss, err := ql.Loss(y, yHat, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, loss, 1e-12) // (0.9 + 0.1) / 2

	// masked elements still count in the denominator
	loss, err = ql.Loss(y, yHat, rows(t, []float64{1, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.45, loss, 1e-12)
}

func TestQuantileLoss_Errors(t *testing.T) {
	_, err := NewQuantileLoss(1)
	assert.ErrorIs(t, err, ErrInvalidQuantile)

	ql, err := NewQuantileLoss(0.5)
	require.NoError(t, err)

	_, err = ql.Loss(rows(t, []float64{1, 2}), rows(t, []float64{1, 2, 3}), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "y_hat", shapeErr.Operand)

	_, err = ql.Loss(rows(t, []float64{1, 2}), rows(t, []float64{1, 2}), rows(t, []float64{1, -1}))
	assert.ErrorIs(t, err, ErrInvalidMask)
}

func TestQuantileLoss_OutputContract(t *testing.T) {
	ql, err := NewQuantileLoss(0.5)
	require.NoError(t, err)

	assert.Equal(t, 1, ql.OutputSizeMultiplier())
	assert.Equal(t, []string{"_ql0.5"}, ql.OutputNames())

	raw := rows(t, []float64{1, 2})
	out, err := ql.AdaptOutput(raw)
	require.NoError(t, err)
	assert.Same(t, raw, out)
}
