// Package losses scores probabilistic forecasts against observations.
//
// It provides the pinball loss at one quantile, the multi-quantile losses
// MQLoss and WMQLoss over a QuantileSet, and Poisson and Gaussian mixture
// likelihoods that also support ancestral sampling.
//
// # Quantile sets
//
// Quantiles are built once, either from interval levels or from explicit
// fractions:
//
//	set, _ := losses.FromLevels([]int{80})
//	// quantiles [0.1 0.5 0.9], names [-lo-80 -median -hi-80]
//
// # Shapes
//
// Observations are [B, H]. Multi-quantile predictions are [B, H, Q]; a model
// emitting a flat [B, H*Q] output is reshaped with AdaptOutput. Mixture
// parameters are [B, H, K] and weights are [B, H, K] or [B, 1, K].
//
// A nil mask includes every element. Masked elements contribute zero but
// still count in the denominator of mean-based losses.
//
// # Numerical contract
//
// Zero denominators yield 0 instead of NaN or Inf. Invalid inputs (shape
// mismatches, negative rates, non-positive standard deviations, weight rows
// that are not distributions) return errors wrapping the sentinels in this
// package.
package losses
