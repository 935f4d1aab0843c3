package losses

import "math"

// SafeDivide returns a/b, mapping NaN and ±Inf results to 0.
func SafeDivide(a, b float64) float64 {
	div := a / b
	if math.IsNaN(div) || math.IsInf(div, 0) {
		return 0
	}
	return div
}

// SafeDivideTo divides a by b elementwise into dst and returns dst. b may
// hold a single value, which is broadcast. dst may alias a.
func SafeDivideTo(dst, a, b []float64) []float64 {
	if len(dst) != len(a) {
		panic("losses: SafeDivideTo dst length mismatch")
	}
	switch len(b) {
	case len(a):
		for i := range a {
			dst[i] = SafeDivide(a[i], b[i])
		}
	case 1:
		for i := range a {
			dst[i] = SafeDivide(a[i], b[0])
		}
	default:
		panic("losses: SafeDivideTo operand length mismatch")
	}
	return dst
}
