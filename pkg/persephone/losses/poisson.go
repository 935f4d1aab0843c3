package losses

import (
	"fmt"
	"math"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// poissonEps keeps log(0) out of the Poisson log density.
const poissonEps = 1e-10

// PoissonMixture is a K-component Poisson mixture likelihood for count data.
type PoissonMixture struct {
	mixture
}

// NewPoissonMixture builds a mixture of the given number of components. A
// nil set means DefaultQuantileSet.
func NewPoissonMixture(components int, set *QuantileSet) (*PoissonMixture, error) {
	m, err := newMixture(components, set)
	if err != nil {
		return nil, err
	}
	return &PoissonMixture{mixture: m}, nil
}

// NegLogLikelihood returns the masked negative mean log likelihood of y
// [B, H] under weights [B, H|1, K] and rates lambdas [B, H, K].
func (p *PoissonMixture) NegLogLikelihood(y, weights, lambdas, mask *tensor.Dense) (float64, error) {
	const op = "poisson mixture"
	b, h, err := p.checkParams(op, weights, []string{"lambdas"}, lambdas)
	if err != nil {
		return 0, err
	}
	if err := p.checkObservations(op, y, b, h); err != nil {
		return 0, err
	}
	if err := validateRates(op, lambdas); err != nil {
		return 0, err
	}
	for i, v := range y.Data() {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: y[%d]=%v: %w", op, i, v, ErrInvalidObservation)
		}
	}

	yd, ld := y.Data(), lambdas.Data()
	k := p.components
	return p.negLogLikelihood(op, y, weights, mask, b, h, func(cell, j int) float64 {
		return poissonLogDensity(yd[cell], ld[cell*k+j])
	})
}

// Sample draws numSamples values per cell and their quantiles. A nil src
// uses the global generator.
func (p *PoissonMixture) Sample(weights, lambdas *tensor.Dense, numSamples int, src rand.Source) (*SampleResult, error) {
	const op = "poisson mixture sample"
	b, h, err := p.checkParams(op, weights, []string{"lambdas"}, lambdas)
	if err != nil {
		return nil, err
	}
	if err := validateRates(op, lambdas); err != nil {
		return nil, err
	}

	ld := lambdas.Data()
	return p.sample(weights, b, h, numSamples, src, func(offset int) float64 {
		return distuv.Poisson{Lambda: ld[offset], Src: src}.Rand()
	})
}

// poissonLogDensity uses Stirling's approximation for log(y!).
func poissonLogDensity(y, lambda float64) float64 {
	return y*math.Log(lambda+poissonEps) - lambda - (y*math.Log(y+poissonEps) - y)
}

func validateRates(op string, lambdas *tensor.Dense) error {
	for i, v := range lambdas.Data() {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: lambdas[%d]=%v: %w", op, i, v, ErrInvalidRate)
		}
	}
	return nil
}
