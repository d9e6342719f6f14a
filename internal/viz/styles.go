package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/cellsim/internal/dynamo"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff00ff"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// typeStyles color the variable role column of MetadataTable.
var typeStyles = map[dynamo.VariableType]lipgloss.Style{
	dynamo.Constant:         lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")),
	dynamo.ComputedConstant: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00")),
	dynamo.Algebraic:        lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9ff3")),
}

// MetadataTable renders the variable of integration, states and variables of
// m with their units and components. values, when non-nil, adds a value
// column for the variables.
func MetadataTable(m dynamo.Module, values dynamo.State) string {
	var sb strings.Builder

	voi := m.VOIInfo()
	sb.WriteString(HeaderStyle.Render(strings.ToUpper(m.Name())) + "\n")
	fmt.Fprintf(&sb, "%s %s (%s) in %s\n\n", MetricLabel.Render("voi:"), voi.Name, voi.Units, voi.Component)

	sb.WriteString(Title.Render("states") + "\n")
	for i, s := range m.StateInfo() {
		fmt.Fprintf(&sb, "  %2d  %-12s %-22s %s\n", i, s.Name, s.Units, Subtle.Render(s.Component))
	}

	sb.WriteString("\n" + Title.Render("variables") + "\n")
	for i, v := range m.VariableInfo() {
		role := typeStyles[v.Type].Render(fmt.Sprintf("%-18s", v.Type))
		line := fmt.Sprintf("  %2d  %-12s %-22s %s", i, v.Name, v.Units, role)
		if values != nil && i < len(values) {
			line += " " + MetricValue.Render(fmt.Sprintf("%.6g", values[i]))
		}
		sb.WriteString(line + "\n")
	}

	return Panel.Render(strings.TrimRight(sb.String(), "\n"))
}

// ProgressBar renders a colored bar for percent in [0, 1].
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if percent > 0.8 {
		return SparkHigh.Render(bar)
	} else if percent > 0.4 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// SparklineChart renders a mini sparkline from values
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))

		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}

	return result.String()
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return Subtle.Render(left + " ◆ " + right)
}
