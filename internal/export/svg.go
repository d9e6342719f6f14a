package export

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cellsim/internal/analysis"
)

// DefaultPalette colors successive series in TimeSeriesToSVG.
var DefaultPalette = []string{"#00ff88", "#00ccff", "#ffcc00", "#ff6b6b", "#ff9ff3"}

type bounds struct {
	minX, rangeX, minY, rangeY float64
}

// padded widens [min, max] by 10% on each side; empty ranges become 1.
func padded(xs, ys []float64) bounds {
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return bounds{minX: minX, rangeX: rangeX * 1.2, minY: minY, rangeY: rangeY * 1.2}
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

func path(sb *strings.Builder, xs, ys []float64, b bounds, width, height int, stroke string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke)
	for i := range xs {
		x := (xs[i] - b.minX) / b.rangeX * float64(width)
		y := float64(height) - (ys[i]-b.minY)/b.rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// TrajectoryToSVG draws a phase space trajectory as a single path.
func TrajectoryToSVG(points []analysis.Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, xs, ys, padded(xs, ys), width, height, strokeColor)
	sb.WriteString("</svg>")
	return sb.String()
}

// TimeSeriesToSVG draws every series against times on shared axes, one path
// per series.
func TimeSeriesToSVG(times []float64, series [][]float64, width, height int) string {
	if len(times) < 2 || len(series) == 0 {
		return ""
	}

	all := make([]float64, 0, len(times)*len(series))
	for _, s := range series {
		if len(s) != len(times) {
			return ""
		}
		all = append(all, s...)
	}
	allTimes := make([]float64, 0, len(all))
	for range series {
		allTimes = append(allTimes, times...)
	}
	b := padded(allTimes, all)

	var sb strings.Builder
	header(&sb, width, height)
	for i, s := range series {
		path(&sb, times, s, b, width, height, DefaultPalette[i%len(DefaultPalette)])
	}
	sb.WriteString("</svg>")
	return sb.String()
}
