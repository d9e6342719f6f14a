package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/integrators"
	"github.com/san-kum/cellsim/internal/models/predatorprey"
	"github.com/san-kum/cellsim/internal/sim"
)

func prepared(t *testing.T) *dynamo.Instance {
	t.Helper()
	inst, err := sim.Prepare(predatorprey.New(), dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	return inst
}

func TestFFTImpulse(t *testing.T) {
	out := FFT([]float64{1, 0, 0, 0, 0, 0, 0, 0})
	for k, v := range out {
		if math.Abs(real(v)-1) > 1e-12 || math.Abs(imag(v)) > 1e-12 {
			t.Errorf("bin %d = %v, want 1", k, v)
		}
	}
}

func TestDominantPeriodSine(t *testing.T) {
	const dt = 0.01
	series := make([]float64, 4096)
	for i := range series {
		series[i] = 3 + math.Sin(2*math.Pi*float64(i)*dt/1.024)
	}

	period, err := DominantPeriod(series, dt)
	if err != nil {
		t.Fatalf("DominantPeriod failed: %v", err)
	}
	if math.Abs(period-1.024) > 1e-9 {
		t.Errorf("period = %v, want 1.024", period)
	}
}

func TestDominantPeriodErrors(t *testing.T) {
	if _, err := DominantPeriod([]float64{1, 2, 3}, 0.1); !errors.Is(err, ErrShortSeries) {
		t.Errorf("expected ErrShortSeries, got %v", err)
	}
	if _, err := DominantPeriod(make([]float64, 64), 0.1); err == nil {
		t.Error("expected error for a constant series")
	}
}

func TestPredatorPreyPeriodEstimatesAgree(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.Dt = 0.01
	cfg.Duration = 100
	result, err := sim.New(predatorprey.New(), integrators.NewRK4()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	spectral, err := DominantPeriod(result.Series(1), cfg.Dt)
	if err != nil {
		t.Fatalf("DominantPeriod failed: %v", err)
	}

	section := GeneratePoincareSection(prepared(t), integrators.NewRK4(), 1, 2.0, 0, 1, cfg.Dt, cfg.Duration)
	if len(section.Times) < 5 {
		t.Fatalf("expected several crossings, got %d", len(section.Times))
	}
	crossing := section.MeanPeriod()

	// small oscillations have period 2*pi/sqrt(a*|c|); this orbit is larger
	if linear := 2 * math.Pi / math.Sqrt(1.2*0.8); crossing < linear {
		t.Errorf("crossing period %v shorter than linearized period %v", crossing, linear)
	}
	if math.Abs(spectral-crossing)/crossing > 0.15 {
		t.Errorf("spectral period %v disagrees with crossing period %v", spectral, crossing)
	}
	for _, p := range section.Points {
		if math.Abs(p.Y-2.0) > 1e-3 {
			t.Errorf("crossing recorded at y_f=%v, want 2.0", p.Y)
		}
	}
}

func TestGeneratePhasePortrait(t *testing.T) {
	inst := prepared(t)
	before := inst.States.Clone()

	portrait := GeneratePhasePortrait(inst, integrators.NewRK4(), 0, 1, 0.01, 10)
	if portrait == nil {
		t.Fatal("expected portrait")
	}
	if len(portrait.Points) != 1001 {
		t.Errorf("expected 1001 points, got %d", len(portrait.Points))
	}
	if portrait.XLabel != "y_s" || portrait.YLabel != "y_f" {
		t.Errorf("labels = %s/%s", portrait.XLabel, portrait.YLabel)
	}
	if portrait.Points[0] != (Point{X: 2.0, Y: 1.0}) {
		t.Errorf("first point = %+v", portrait.Points[0])
	}
	for i := range before {
		if inst.States[i] != before[i] {
			t.Error("portrait must not modify the instance states")
		}
	}

	if GeneratePhasePortrait(inst, integrators.NewRK4(), 0, 5, 0.01, 1) != nil {
		t.Error("expected nil for an out-of-range index")
	}
}

func TestPhasePortraitToASCII(t *testing.T) {
	inst := prepared(t)
	portrait := GeneratePhasePortrait(inst, integrators.NewRK4(), 0, 1, 0.05, 20)

	out := PhasePortraitToASCII(portrait, 40, 12)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 12 {
		t.Errorf("expected 12 lines, got %d", len(lines))
	}
	if !strings.ContainsRune(out, '•') {
		t.Error("expected plotted points")
	}
	if PhasePortraitToASCII(nil, 40, 12) != "" {
		t.Error("expected empty output for nil portrait")
	}
	if PoincareSectionToASCII(&PoincareSection{}, 10, 5) != "No crossings detected" {
		t.Error("unexpected output for empty section")
	}
}

func TestResampleLinear(t *testing.T) {
	times := []float64{0, 0.5, 2, 3, 4}
	series := make([]float64, len(times))
	for i, x := range times {
		series[i] = 2*x + 1
	}

	out, h, err := Resample(times, series, 9)
	if err != nil {
		t.Fatalf("resample failed: %v", err)
	}
	if h != 0.5 {
		t.Errorf("spacing %v, want 0.5", h)
	}
	for i, v := range out {
		want := 2*(float64(i)*h) + 1
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestResampleErrors(t *testing.T) {
	if _, _, err := Resample([]float64{0, 1}, []float64{1}, 4); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, _, err := Resample([]float64{0}, []float64{1}, 4); !errors.Is(err, ErrShortSeries) {
		t.Errorf("expected ErrShortSeries, got %v", err)
	}
}

func TestIsUniform(t *testing.T) {
	if !IsUniform([]float64{0, 0.1, 0.2, 0.3}, 1e-6) {
		t.Error("evenly spaced times reported as non-uniform")
	}
	if IsUniform([]float64{0, 0.1, 0.25, 0.3}, 1e-6) {
		t.Error("uneven times reported as uniform")
	}
}
