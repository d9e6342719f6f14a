package metrics

import (
	"math"

	"github.com/san-kum/cellsim/internal/dynamo"
)

// InvariantDrift tracks the largest relative change of a conserved quantity
// since the first observation.
type InvariantDrift struct {
	name      string
	inv       dynamo.Invariant
	variables dynamo.State
	initial   float64
	maxDrift  float64
	samples   int
}

// NewInvariantDrift evaluates inv with a fixed variable vector, normally the
// one left by ComputeComputedConstants.
func NewInvariantDrift(inv dynamo.Invariant, variables dynamo.State) *InvariantDrift {
	return &InvariantDrift{
		name:      "invariant_drift",
		inv:       inv,
		variables: variables.Clone(),
	}
}

func (d *InvariantDrift) Name() string { return d.name }

func (d *InvariantDrift) Observe(x dynamo.State, t float64) {
	h := d.inv.Invariant(x, d.variables)

	if d.samples == 0 {
		d.initial = h
	}
	d.samples++

	var drift float64
	if d.initial != 0 {
		drift = math.Abs(h-d.initial) / math.Abs(d.initial)
	} else {
		drift = math.Abs(h)
	}
	d.maxDrift = math.Max(d.maxDrift, drift)
}

func (d *InvariantDrift) Value() float64 {
	return d.maxDrift
}

func (d *InvariantDrift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}
