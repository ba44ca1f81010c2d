// Package gradcheck verifies analytic gradients against central
// finite-difference estimates. It exists because the splat pipeline's
// backward passes are hand-derived; every new VJP should be checked against
// the forward pass it claims to differentiate.
package gradcheck

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// Settings controls the finite-difference estimate and the comparison. A
// gradient entry passes when |analytic - numeric| is within AbsTol or within
// RelTol of max(|analytic|, |numeric|).
type Settings struct {
	Step   float64
	RelTol float64
	AbsTol float64
}

// DefaultSettings balances truncation against cancellation for float64
// pipelines with O(1) inputs.
func DefaultSettings() Settings {
	return Settings{Step: 1e-5, RelTol: 1e-3, AbsTol: 1e-7}
}

// Gradient estimates the gradient of f at x by central differences.
func Gradient(f func(x []float64) float64, x []float64, step float64) []float64 {
	dst := make([]float64, len(x))
	fd.Gradient(dst, f, x, &fd.Settings{Formula: fd.Central, Step: step})
	return dst
}

// Check estimates the gradient of f at x and compares it entry-by-entry
// against the analytic gradient. It returns an error naming the first
// mismatching entry.
func Check(f func(x []float64) float64, x, analytic []float64, s Settings) error {
	if len(analytic) != len(x) {
		return fmt.Errorf("gradcheck: analytic gradient has %d entries, want %d", len(analytic), len(x))
	}
	numeric := Gradient(f, x, s.Step)
	for i := range x {
		if !within(analytic[i], numeric[i], s) {
			return fmt.Errorf("gradcheck: entry %d: analytic %v, numeric %v", i, analytic[i], numeric[i])
		}
	}
	return nil
}

func within(a, b float64, s Settings) bool {
	diff := math.Abs(a - b)
	if diff <= s.AbsTol {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= s.RelTol*scale
}
