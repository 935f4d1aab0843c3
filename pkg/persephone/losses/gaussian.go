package losses

import (
	"fmt"
	"math"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// GaussianMixture is a K-component Gaussian mixture likelihood.
type GaussianMixture struct {
	mixture
}

// NewGaussianMixture builds a mixture of the given number of components. A
// nil set means DefaultQuantileSet.
func NewGaussianMixture(components int, set *QuantileSet) (*GaussianMixture, error) {
	m, err := newMixture(components, set)
	if err != nil {
		return nil, err
	}
	return &GaussianMixture{mixture: m}, nil
}

// NegLogLikelihood returns the masked negative mean log likelihood of y
// [B, H] under weights [B, H|1, K], means and stds [B, H, K].
func (g *GaussianMixture) NegLogLikelihood(y, weights, means, stds, mask *tensor.Dense) (float64, error) {
	const op = "gaussian mixture"
	b, h, err := g.checkParams(op, weights, []string{"means", "stds"}, means, stds)
	if err != nil {
		return 0, err
	}
	if err := g.checkObservations(op, y, b, h); err != nil {
		return 0, err
	}
	if err := validateGaussian(op, means, stds); err != nil {
		return 0, err
	}

	yd, md, sd := y.Data(), means.Data(), stds.Data()
	k := g.components
	return g.negLogLikelihood(op, y, weights, mask, b, h, func(cell, j int) float64 {
		i := cell*k + j
		return gaussianLogDensity(yd[cell], md[i], sd[i])
	})
}

// Sample draws numSamples values per cell and their quantiles. A nil src
// uses the global generator.
func (g *GaussianMixture) Sample(weights, means, stds *tensor.Dense, numSamples int, src rand.Source) (*SampleResult, error) {
	const op = "gaussian mixture sample"
	b, h, err := g.checkParams(op, weights, []string{"means", "stds"}, means, stds)
	if err != nil {
		return nil, err
	}
	if err := validateGaussian(op, means, stds); err != nil {
		return nil, err
	}

	md, sd := means.Data(), stds.Data()
	return g.sample(weights, b, h, numSamples, src, func(offset int) float64 {
		return distuv.Normal{Mu: md[offset], Sigma: sd[offset], Src: src}.Rand()
	})
}

func gaussianLogDensity(y, mu, sigma float64) float64 {
	z := (y - mu) / sigma
	return -0.5*z*z - (logSqrt2Pi + math.Log(sigma))
}

func validateGaussian(op string, means, stds *tensor.Dense) error {
	for i, v := range means.Data() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: means[%d]=%v: %w", op, i, v, ErrInvalidMean)
		}
	}
	for i, v := range stds.Data() {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: stds[%d]=%v: %w", op, i, v, ErrInvalidScale)
		}
	}
	return nil
}
