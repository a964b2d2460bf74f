package utils

import "golang.org/x/exp/constraints"

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Lerp linearly interpolates between a and b by t in [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp(t, 0.0, 1.0)
}

// SafeDiv divides a by b, returning fallback when b is effectively zero.
func SafeDiv(a, b, fallback float64) float64 {
	if b > -1e-12 && b < 1e-12 {
		return fallback
	}
	return a / b
}
