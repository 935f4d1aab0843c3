package losses

import (
	"fmt"
	"math"
	"slices"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultNumSamples is the number of draws per cell used by the CLI when
// none is configured.
const DefaultNumSamples = 500

// SampleResult holds empirical draws from a fitted mixture and the
// configured quantiles of those draws.
type SampleResult struct {
	Samples   *tensor.Dense // [B, H, num_samples]
	Quantiles *tensor.Dense // [B, H, Q]
	Names     []string      // one suffix per quantile
}

// mixture holds the state shared by the Poisson and Gaussian mixtures.
type mixture struct {
	set        *QuantileSet
	components int
}

func newMixture(components int, set *QuantileSet) (mixture, error) {
	if components < 1 {
		return mixture{}, fmt.Errorf("%w: %d", ErrInvalidComponents, components)
	}
	if set == nil {
		set = DefaultQuantileSet()
	}
	return mixture{set: set, components: components}, nil
}

// Components returns K.
func (m mixture) Components() int {
	return m.components
}

// QuantileSet returns the quantiles extracted by Sample.
func (m mixture) QuantileSet() *QuantileSet {
	return m.set
}

// OutputSizeMultiplier reports K. Mixture parameters arrive already shaped
// [B, H, K], so it is informational only.
func (m mixture) OutputSizeMultiplier() int {
	return m.components
}

func (m mixture) OutputNames() []string {
	return m.set.Names()
}

// AdaptOutput returns raw unchanged.
func (m mixture) AdaptOutput(raw *tensor.Dense) (*tensor.Dense, error) {
	return raw, nil
}

// checkParams validates that every parameter tensor is [B, H, K] with the
// mixture's K and that weights are [B, H, K] or [B, 1, K]. It returns B, H.
func (m mixture) checkParams(op string, weights *tensor.Dense, names []string, params ...*tensor.Dense) (int, int, error) {
	first := params[0]
	if first.Dims() != 3 || first.Dim(2) != m.components {
		return 0, 0, newShapeError(op, names[0], []int{-1, -1, m.components}, first.Shape())
	}
	for i, p := range params[1:] {
		if !tensor.SameShape(first, p) {
			return 0, 0, newShapeError(op, names[i+1], first.Shape(), p.Shape())
		}
	}

	b, h := first.Dim(0), first.Dim(1)
	ws := weights.Shape()
	if len(ws) != 3 || ws[0] != b || (ws[1] != h && ws[1] != 1) || ws[2] != m.components {
		return 0, 0, newShapeError(op, "weights", []int{b, h, m.components}, ws)
	}
	if err := validateWeights(op, weights, m.components); err != nil {
		return 0, 0, err
	}
	return b, h, nil
}

func (m mixture) checkObservations(op string, y *tensor.Dense, b, h int) error {
	if !tensor.EqualShape(y.Shape(), []int{b, h}) {
		return newShapeError(op, "y", []int{b, h}, y.Shape())
	}
	return nil
}

func validateWeights(op string, weights *tensor.Dense, k int) error {
	data := weights.Data()
	for row := 0; row*k < len(data); row++ {
		w := data[row*k : (row+1)*k]
		var sum float64
		for _, v := range w {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s: row %d has weight %v: %w", op, row, v, ErrInvalidWeights)
			}
			sum += v
		}
		if !(sum > 0) {
			return fmt.Errorf("%s: row %d sums to %v: %w", op, row, sum, ErrInvalidWeights)
		}
	}
	return nil
}

// weightRow returns the K weights for cell (b, h), broadcasting a weight
// tensor with a horizon of 1.
func weightRow(weights *tensor.Dense, b, h int) []float64 {
	hw, k := weights.Dim(1), weights.Dim(2)
	if hw == 1 {
		h = 0
	}
	start := (b*hw + h) * k
	return weights.Data()[start : start+k]
}

// negLogLikelihood computes -mean(mask * log sum_k w_k p_k(y)) given the
// per-component log density of each cell. Cells with a zero mask are
// skipped but still count in the mean.
func (m mixture) negLogLikelihood(op string, y, weights, mask *tensor.Dense, b, h int, logDensity func(cell, k int) float64) (float64, error) {
	mk, err := resolveMask(op, y, mask)
	if err != nil {
		return 0, err
	}
	cells := b * h
	if cells == 0 {
		return 0, nil
	}

	logp := make([]float64, m.components)
	var sum float64
	for c := 0; c < cells; c++ {
		if mk[c] == 0 {
			continue
		}
		for k := range logp {
			logp[k] = logDensity(c, k)
		}
		loglik := weightedLogSumExp(logp, weightRow(weights, c/h, c%h))
		sum += loglik * mk[c]
	}
	return -sum / float64(cells), nil
}

// weightedLogSumExp returns log(sum_k w_k exp(logp_k)) without overflowing
// or underflowing for large |logp_k|.
func weightedLogSumExp(logp, w []float64) float64 {
	top := floats.Max(logp)
	if math.IsInf(top, -1) {
		return top
	}
	var lik float64
	for k, lp := range logp {
		lik += w[k] * math.Exp(lp-top)
	}
	return math.Log(lik) + top
}

// drawComponents draws n component indices per cell from that cell's
// weight row. Indices are local to the cell, in [0, K).
func (m mixture) drawComponents(weights *tensor.Dense, b, h, n int, src rand.Source) []int {
	local := make([]int, b*h*n)
	for c := 0; c < b*h; c++ {
		cat := distuv.NewCategorical(weightRow(weights, c/h, c%h), src)
		for s := 0; s < n; s++ {
			local[c*n+s] = int(cat.Rand())
		}
	}
	return local
}

// sortedQuantile linearly interpolates between the order statistics
// around position q*(n-1) of an ascending slice.
func sortedQuantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// GlobalOffsets converts per-cell component indices into offsets into the
// flattened [cells*K] parameter buffer. local holds samplesPerCell indices
// per cell, cell-major; entry i belongs to cell i/samplesPerCell and maps to
// cell*K + local[i].
func GlobalOffsets(local []int, samplesPerCell, components int) []int {
	offsets := make([]int, len(local))
	for i, idx := range local {
		offsets[i] = (i/samplesPerCell)*components + idx
	}
	return offsets
}

// sample runs ancestral sampling: pick a component per draw, then draw
// from it. draw receives the flat offset of the chosen component.
func (m mixture) sample(weights *tensor.Dense, b, h, n int, src rand.Source, draw func(offset int) float64) (*SampleResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}

	offsets := GlobalOffsets(m.drawComponents(weights, b, h, n, src), n, m.components)
	samples := make([]float64, len(offsets))
	for i, off := range offsets {
		samples[i] = draw(off)
	}

	cells := b * h
	nq := m.set.Len()
	quants := make([]float64, cells*nq)
	sorted := make([]float64, n)
	for c := 0; c < cells; c++ {
		copy(sorted, samples[c*n:(c+1)*n])
		slices.Sort(sorted)
		for j, q := range m.set.quantiles {
			quants[c*nq+j] = sortedQuantile(sorted, q)
		}
	}

	sampleT, err := tensor.New([]int{b, h, n}, samples)
	if err != nil {
		return nil, err
	}
	quantT, err := tensor.New([]int{b, h, nq}, quants)
	if err != nil {
		return nil, err
	}
	return &SampleResult{Samples: sampleT, Quantiles: quantT, Names: m.set.Names()}, nil
}
