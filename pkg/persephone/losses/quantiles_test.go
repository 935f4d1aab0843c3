package losses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLevels(t *testing.T) {
	tests := []struct {
		name      string
		levels    []int
		quantiles []float64
		names     []string
	}{
		{
			name:      "empty yields median only",
			levels:    nil,
			quantiles: []float64{0.5},
			names:     []string{"-median"},
		},
		{
			name:      "single level",
			levels:    []int{80},
			quantiles: []float64{0.1, 0.5, 0.9},
			names:     []string{"-lo-80", "-median", "-hi-80"},
		},
		{
			name:      "default levels",
			levels:    []int{80, 90},
			quantiles: []float64{0.05, 0.1, 0.5, 0.9, 0.95},
			names:     []string{"-lo-90", "-lo-80", "-median", "-hi-80", "-hi-90"},
		},
		{
			name:      "unsorted levels",
			levels:    []int{50, 95},
			quantiles: []float64{0.025, 0.25, 0.5, 0.75, 0.975},
			names:     []string{"-lo-95", "-lo-50", "-median", "-hi-50", "-hi-95"},
		},
		{
			name:      "full interval",
			levels:    []int{100},
			quantiles: []float64{0, 0.5, 1},
			names:     []string{"-lo-100", "-median", "-hi-100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := FromLevels(tt.levels)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.quantiles, set.Quantiles(), 1e-12)
			assert.Equal(t, tt.names, set.Names())
			assert.Equal(t, len(tt.names), set.Len())
		})
	}
}

func TestFromLevels_ZeroLevelKeepsDuplicates(t *testing.T) {
	set, err := FromLevels([]int{0})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 0.5, 0.5}, set.Quantiles())
	assert.Equal(t, []string{"-median", "-lo-0", "-hi-0"}, set.Names())
	assert.Equal(t, 0, set.Median())
}

func TestFromLevels_Invalid(t *testing.T) {
	for _, levels := range [][]int{{-1}, {101}, {80, 120}} {
		_, err := FromLevels(levels)
		assert.ErrorIs(t, err, ErrInvalidLevel, "levels %v", levels)
	}
}

func TestFromQuantiles(t *testing.T) {
	tests := []struct {
		quantiles []float64
		names     []string
	}{
		{[]float64{0.1, 0.5, 0.9}, []string{"-lo-80.0", "-median", "-hi-80.0"}},
		{[]float64{0.025, 0.975}, []string{"-lo-95.0", "-hi-95.0"}},
		{[]float64{0.333}, []string{"-lo-33.4"}},
		{[]float64{0.9, 0.1}, []string{"-hi-80.0", "-lo-80.0"}},
		{[]float64{0.5}, []string{"-median"}},
	}

	for _, tt := range tests {
		set, err := FromQuantiles(tt.quantiles)
		require.NoError(t, err)
		assert.Equal(t, tt.quantiles, set.Quantiles())
		assert.Equal(t, tt.names, set.Names())
	}
}

func TestFromQuantiles_Invalid(t *testing.T) {
	for _, qs := range [][]float64{{}, {0}, {1}, {0.5, 1.2}, {-0.1}} {
		_, err := FromQuantiles(qs)
		assert.ErrorIs(t, err, ErrInvalidQuantile, "quantiles %v", qs)
	}
}

func TestQuantileSet_RoundTrip(t *testing.T) {
	fromLevels, err := FromLevels([]int{80, 90})
	require.NoError(t, err)

	fromQuantiles, err := FromQuantiles(fromLevels.Quantiles())
	require.NoError(t, err)

	assert.Equal(t, fromLevels.Quantiles(), fromQuantiles.Quantiles())
	for i, name := range fromLevels.Names() {
		want := name
		if name != "-median" {
			want += ".0"
		}
		assert.Equal(t, want, fromQuantiles.Names()[i])
	}
}

func TestNewQuantileSet_Precedence(t *testing.T) {
	set, err := NewQuantileSet([]int{80}, []float64{0.3})
	require.NoError(t, err)
	assert.Equal(t, []string{"-lo-80", "-median", "-hi-80"}, set.Names())

	set, err = NewQuantileSet(nil, []float64{0.3})
	require.NoError(t, err)
	assert.Equal(t, []string{"-lo-40.0"}, set.Names())

	set, err = NewQuantileSet(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, set.Quantiles())
}

func TestQuantileSet_IsImmutable(t *testing.T) {
	set := DefaultQuantileSet()
	qs := set.Quantiles()
	qs[0] = 0.42
	names := set.Names()
	names[0] = "mutated"

	assert.Equal(t, 0.05, set.At(0))
	assert.Equal(t, "-lo-90", set.Names()[0])
	assert.Equal(t, 2, set.Index(0.5))
	assert.Equal(t, -1, set.Index(0.3))
}
