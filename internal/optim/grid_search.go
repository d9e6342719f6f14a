package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/experiment"
)

// GridSearch evaluates every combination of constant values and keeps the
// one that minimizes a metric. Combinations run in parallel, each with its
// own experiment.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	limit      int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// WithLimit caps the number of concurrent runs; <= 0 means GOMAXPROCS.
func (g *GridSearch) WithLimit(n int) *GridSearch {
	g.limit = n
	return g
}

// Evaluation is the metric value of one parameter combination.
type Evaluation struct {
	Params map[string]float64
	Value  float64
}

// Combinations enumerates the grid in row-major order of paramNames.
func (g *GridSearch) Combinations() []map[string]float64 {
	combos := []map[string]float64{{}}
	for depth, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(combos)*len(g.ranges[depth]))
		for _, base := range combos {
			for _, val := range g.ranges[depth] {
				c := make(map[string]float64, len(base)+1)
				for k, v := range base {
					c[k] = v
				}
				c[name] = val
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// Search returns the best combination, its metric value and every
// evaluation in grid order. A failed build or run aborts the search.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, []Evaluation, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("grid search: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	combos := g.Combinations()
	evals := make([]Evaluation, len(combos))

	err := dynamo.Sweep(ctx, len(combos), g.limit, func(ctx context.Context, idx int) error {
		exp, err := buildExperiment(combos[idx])
		if err != nil {
			return fmt.Errorf("build %v: %w", combos[idx], err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return fmt.Errorf("run %v: %w", combos[idx], err)
		}
		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("metric %q not reported", metricName)
		}
		if len(result.Errors) > 0 {
			val = math.Inf(1)
		}
		evals[idx] = Evaluation{Params: combos[idx], Value: val}
		return nil
	})
	if err != nil {
		return nil, 0, nil, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for _, ev := range evals {
		if ev.Value < best {
			best = ev.Value
			bestParams = ev.Params
		}
	}

	return bestParams, best, evals, nil
}
