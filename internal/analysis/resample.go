package analysis

import (
	"errors"

	"gonum.org/v1/gonum/interp"
)

// Resample interpolates a series recorded at increasing times onto n evenly
// spaced points over the same span and returns them with their spacing.
// Adaptive runs need this before any spectral analysis.
func Resample(times, series []float64, n int) ([]float64, float64, error) {
	if len(times) != len(series) {
		return nil, 0, errors.New("analysis: times and series differ in length")
	}
	if len(times) < 2 || n < 2 {
		return nil, 0, ErrShortSeries
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(times, series); err != nil {
		return nil, 0, err
	}

	t0 := times[0]
	h := (times[len(times)-1] - t0) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = pl.Predict(t0 + float64(i)*h)
	}
	return out, h, nil
}

// IsUniform reports whether consecutive times are evenly spaced within a
// relative tolerance.
func IsUniform(times []float64, tol float64) bool {
	if len(times) < 3 {
		return true
	}
	h := times[1] - times[0]
	for i := 2; i < len(times); i++ {
		d := times[i] - times[i-1]
		if d-h > tol*h || h-d > tol*h {
			return false
		}
	}
	return true
}
