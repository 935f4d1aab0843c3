package losses

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch indicates tensors that cannot be combined in one call
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidLevel indicates a prediction-interval level outside [0, 100]
	ErrInvalidLevel = errors.New("invalid level")

	// ErrInvalidQuantile indicates a quantile fraction outside (0, 1)
	ErrInvalidQuantile = errors.New("invalid quantile")

	// ErrInvalidMask indicates a negative or non-finite mask weight
	ErrInvalidMask = errors.New("invalid mask")

	// ErrInvalidRate indicates a negative or non-finite Poisson rate
	ErrInvalidRate = errors.New("invalid poisson rate")

	// ErrInvalidMean indicates a non-finite Gaussian mean
	ErrInvalidMean = errors.New("invalid gaussian mean")

	// ErrInvalidScale indicates a non-positive Gaussian standard deviation
	ErrInvalidScale = errors.New("invalid gaussian scale")

	// ErrInvalidObservation indicates a negative count under a Poisson mixture
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrInvalidWeights indicates a mixture weight row that is not a distribution
	ErrInvalidWeights = errors.New("invalid mixture weights")

	// ErrInvalidSampleCount indicates a non-positive number of samples
	ErrInvalidSampleCount = errors.New("invalid sample count")

	// ErrInvalidComponents indicates a mixture with fewer than one component
	ErrInvalidComponents = errors.New("invalid component count")
)

// ShapeError describes which operand of which operation had the wrong shape.
type ShapeError struct {
	Op      string
	Operand string
	Want    []int
	Got     []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: shape mismatch: want %v, got %v", e.Op, e.Operand, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func newShapeError(op, operand string, want, got []int) *ShapeError {
	return &ShapeError{
		Op:      op,
		Operand: operand,
		Want:    want,
		Got:     got,
	}
}
