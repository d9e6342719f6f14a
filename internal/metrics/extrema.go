package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cellsim/internal/dynamo"
)

// Extrema reports the peak-to-peak amplitude of one state index.
type Extrema struct {
	name   string
	idx    int
	values []float64
}

func NewExtrema(idx int, label string) *Extrema {
	return &Extrema{
		name: fmt.Sprintf("amplitude_%s", label),
		idx:  idx,
	}
}

func (e *Extrema) Name() string { return e.name }

func (e *Extrema) Observe(x dynamo.State, t float64) {
	if e.idx < len(x) {
		e.values = append(e.values, x[e.idx])
	}
}

func (e *Extrema) Min() float64 {
	if len(e.values) == 0 {
		return 0
	}
	return floats.Min(e.values)
}

func (e *Extrema) Max() float64 {
	if len(e.values) == 0 {
		return 0
	}
	return floats.Max(e.values)
}

func (e *Extrema) Value() float64 {
	return e.Max() - e.Min()
}

func (e *Extrema) Reset() {
	e.values = e.values[:0]
}
