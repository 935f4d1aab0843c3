package losses

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultLevels are the prediction-interval levels used when none are configured.
var DefaultLevels = []int{80, 90}

const medianName = "-median"

// QuantileSet is an ordered list of quantile fractions with one display
// suffix per fraction. It is immutable once built.
type QuantileSet struct {
	quantiles []float64
	names     []string
}

// FromLevels converts symmetric prediction-interval levels (percent) into
// quantiles. Each level l contributes 50-l/2 and 50+l/2; the median is always
// present. The result is sorted by fraction, with the median ahead of any
// equal fraction produced by a level of 0. Such duplicates are kept.
func FromLevels(levels []int) (*QuantileSet, error) {
	type entry struct {
		q    float64
		name string
	}

	entries := make([]entry, 0, 2*len(levels)+1)
	entries = append(entries, entry{q: 0.5, name: medianName})
	for _, l := range levels {
		if l < 0 || l > 100 {
			return nil, fmt.Errorf("%w: %d not in [0, 100]", ErrInvalidLevel, l)
		}
		half := float64(l) / 2
		entries = append(entries,
			entry{q: (50 - half) / 100, name: fmt.Sprintf("-lo-%d", l)},
			entry{q: (50 + half) / 100, name: fmt.Sprintf("-hi-%d", l)},
		)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].q < entries[j].q
	})

	set := &QuantileSet{
		quantiles: make([]float64, len(entries)),
		names:     make([]string, len(entries)),
	}
	for i, e := range entries {
		set.quantiles[i] = e.q
		set.names[i] = e.name
	}
	return set, nil
}

// FromQuantiles labels explicit quantile fractions. Order is preserved.
func FromQuantiles(qs []float64) (*QuantileSet, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: empty quantile list", ErrInvalidQuantile)
	}

	set := &QuantileSet{
		quantiles: make([]float64, len(qs)),
		names:     make([]string, len(qs)),
	}
	for i, q := range qs {
		if !(q > 0 && q < 1) {
			return nil, fmt.Errorf("%w: %v not in (0, 1)", ErrInvalidQuantile, q)
		}
		set.quantiles[i] = q
		switch {
		case q < 0.5:
			set.names[i] = "-lo-" + formatPercent(100-200*q)
		case q > 0.5:
			set.names[i] = "-hi-" + formatPercent(100-200*(1-q))
		default:
			set.names[i] = medianName
		}
	}
	return set, nil
}

// NewQuantileSet picks the construction path: levels win when present,
// otherwise explicit quantiles, otherwise the median alone.
func NewQuantileSet(levels []int, quantiles []float64) (*QuantileSet, error) {
	if len(levels) > 0 {
		return FromLevels(levels)
	}
	if quantiles != nil {
		return FromQuantiles(quantiles)
	}
	return FromLevels(nil)
}

// DefaultQuantileSet is FromLevels(DefaultLevels).
func DefaultQuantileSet() *QuantileSet {
	set, err := FromLevels(DefaultLevels)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of quantiles.
func (s *QuantileSet) Len() int {
	return len(s.quantiles)
}

// Quantiles returns a copy of the fractions.
func (s *QuantileSet) Quantiles() []float64 {
	return append([]float64(nil), s.quantiles...)
}

// Names returns a copy of the display suffixes.
func (s *QuantileSet) Names() []string {
	return append([]string(nil), s.names...)
}

// At returns the i-th fraction.
func (s *QuantileSet) At(i int) float64 {
	return s.quantiles[i]
}

// Index returns the position of the first fraction equal to q, or -1.
func (s *QuantileSet) Index(q float64) int {
	for i, v := range s.quantiles {
		if v == q {
			return i
		}
	}
	return -1
}

// Median returns the position of the median, or -1 when absent.
func (s *QuantileSet) Median() int {
	return s.Index(0.5)
}

func (s *QuantileSet) String() string {
	parts := make([]string, len(s.quantiles))
	for i := range s.quantiles {
		parts[i] = fmt.Sprintf("%s=%v", s.names[i], s.quantiles[i])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// formatPercent rounds to two decimals and always prints a fractional part
// (80 -> "80.0", 97.5 -> "97.5").
func formatPercent(v float64) string {
	v = math.Round(v*100) / 100
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
