package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// ErrShortSeries is returned when a series has too few samples to analyze.
var ErrShortSeries = errors.New("analysis: series too short")

// FFT is a radix-2 transform; len(data) must be a power of two.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	if n%2 != 0 {
		panic("fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)

	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}

	return result
}

// PowerSpectrum returns the magnitude of the first half of the transform of
// the mean-removed series, truncated to the largest power of two.
func PowerSpectrum(data []float64) []float64 {
	n := pow2Floor(len(data))
	if n < 2 {
		return nil
	}

	centered := make([]float64, n)
	copy(centered, data[:n])
	floats.AddConst(-floats.Sum(centered)/float64(n), centered)

	fft := FFT(centered)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}

	return ps
}

// DominantPeriod returns the period of the strongest non-zero frequency in a
// series sampled every dt.
func DominantPeriod(series []float64, dt float64) (float64, error) {
	ps := PowerSpectrum(series)
	if len(ps) < 2 {
		return 0, ErrShortSeries
	}
	n := 2 * len(ps)

	k := floats.MaxIdx(ps[1:]) + 1
	if ps[k] == 0 {
		return 0, errors.New("analysis: series is constant")
	}
	return float64(n) * dt / float64(k), nil
}

func pow2Floor(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	if n == 0 {
		return 0
	}
	return p
}
