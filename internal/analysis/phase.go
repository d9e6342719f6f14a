package analysis

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cellsim/internal/dynamo"
)

type Point struct {
	X, Y float64
}

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	XIndex, YIndex int
	XLabel, YLabel string
	Points         []Point
}

// GeneratePhasePortrait integrates a prepared instance from its current
// states and records the (xIdx, yIdx) projection after every step. The
// instance's states are left untouched.
func GeneratePhasePortrait(
	inst *dynamo.Instance,
	integ dynamo.Integrator,
	xIdx, yIdx int,
	dt, duration float64,
) *PhasePortrait2D {
	if xIdx >= inst.StateDim() || yIdx >= inst.StateDim() || xIdx < 0 || yIdx < 0 {
		return nil
	}

	info := inst.Module.StateInfo()
	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		XLabel: info[xIdx].Name,
		YLabel: info[yIdx].Name,
		Points: make([]Point, 0, int(duration/dt)+1),
	}

	x := inst.States.Clone()
	portrait.Points = append(portrait.Points, Point{X: x[xIdx], Y: x[yIdx]})

	steps := int(duration/dt + 1e-9)
	for i := 0; i < steps; i++ {
		x = integ.Step(inst, x, float64(i)*dt, dt)
		if !x.IsValid() {
			break
		}
		portrait.Points = append(portrait.Points, Point{X: x[xIdx], Y: x[yIdx]})
	}

	return portrait
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	xs := make([]float64, len(portrait.Points))
	ys := make([]float64, len(portrait.Points))
	for i, p := range portrait.Points {
		xs[i], ys[i] = p.X, p.Y
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	// pad by 10% so the orbit does not touch the frame
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// axes, when they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// PoincareSection records points when a trajectory crosses a threshold
type PoincareSection struct {
	Times  []float64
	Points []Point
}

// GeneratePoincareSection records the (recordX, recordY) projection at every
// upward crossing of threshold by state crossIdx, linearly interpolated
// between the bracketing steps.
func GeneratePoincareSection(
	inst *dynamo.Instance,
	integ dynamo.Integrator,
	crossIdx int,
	threshold float64,
	recordX, recordY int,
	dt, duration float64,
) *PoincareSection {
	n := inst.StateDim()
	if crossIdx >= n || recordX >= n || recordY >= n {
		return nil
	}

	section := &PoincareSection{}

	x := inst.States.Clone()
	steps := int(duration/dt + 1e-9)

	for i := 0; i < steps; i++ {
		t := float64(i) * dt
		next := integ.Step(inst, x, t, dt)
		if !next.IsValid() {
			break
		}

		prev, curr := x[crossIdx], next[crossIdx]
		if prev < threshold && curr >= threshold {
			frac := (threshold - prev) / (curr - prev)
			section.Times = append(section.Times, t+frac*dt)
			section.Points = append(section.Points, Point{
				X: x[recordX] + frac*(next[recordX]-x[recordX]),
				Y: x[recordY] + frac*(next[recordY]-x[recordY]),
			})
		}

		x = next
	}

	return section
}

// MeanPeriod is the mean interval between crossings, or 0 with fewer than two.
func (p *PoincareSection) MeanPeriod() float64 {
	if p == nil || len(p.Times) < 2 {
		return 0
	}
	return (p.Times[len(p.Times)-1] - p.Times[0]) / float64(len(p.Times)-1)
}

// PoincareSectionToASCII converts section data to ASCII plot
func PoincareSectionToASCII(section *PoincareSection, width, height int) string {
	if section == nil || len(section.Points) == 0 {
		return "No crossings detected"
	}

	portrait := &PhasePortrait2D{Points: section.Points}
	return PhasePortraitToASCII(portrait, width, height)
}
