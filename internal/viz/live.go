package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cellsim/internal/analysis"
	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/sim"
)

const (
	canvasWidth     = 60
	canvasHeight    = 18
	historyCapacity = 600
	tickRate        = time.Second / 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps one module instance in real time and draws its phase portrait.
// One-state modules are drawn against time instead.
type Model struct {
	module       dynamo.Module
	integrator   dynamo.Integrator
	cfg          dynamo.Config
	inst         *dynamo.Instance
	x            dynamo.State
	t            float64
	steps        int
	stepsPerTick int
	running      bool
	err          error

	canvas  *Canvas
	trail   []analysis.Point
	history []float64
	xIdx    int
	yIdx    int

	constants []string
	selected  int
}

// NewModel prepares an instance of m with cfg's overrides.
func NewModel(m dynamo.Module, integ dynamo.Integrator, cfg dynamo.Config, stepsPerTick int) (Model, error) {
	var constants []string
	for _, v := range m.VariableInfo() {
		if v.Type == dynamo.Constant {
			constants = append(constants, v.Name)
		}
	}
	if stepsPerTick < 1 {
		stepsPerTick = 1
	}

	cfg.Constants = copyOverrides(cfg.Constants)
	model := Model{
		module:       m,
		integrator:   integ,
		cfg:          cfg,
		stepsPerTick: stepsPerTick,
		running:      true,
		canvas:       NewCanvas(canvasWidth, canvasHeight),
		xIdx:         0,
		yIdx:         min(1, len(m.StateInfo())-1),
		constants:    constants,
	}
	if err := model.restart(); err != nil {
		return Model{}, err
	}
	return model, nil
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Time is the current value of the variable of integration.
func (m Model) Time() float64 { return m.t }

func (m Model) Running() bool { return m.running }

func (m Model) Err() error { return m.err }

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running && m.err == nil
		case "r":
			m.err = m.restart()
		case "s":
			m.xIdx, m.yIdx = m.yIdx, m.xIdx
			m.trail = m.trail[:0]
		case "tab":
			if len(m.constants) > 0 {
				m.selected = (m.selected + 1) % len(m.constants)
			}
		case "up", "k":
			m.err = m.adjustConstant(1.05)
		case "down", "j":
			m.err = m.adjustConstant(0.95)
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// restart rebuilds the instance so computed constants see the overrides.
func (m *Model) restart() error {
	inst, err := sim.Prepare(m.module, m.cfg)
	if err != nil {
		return err
	}
	m.inst = inst
	m.x = inst.States.Clone()
	m.t = 0
	m.steps = 0
	m.trail = m.trail[:0]
	m.history = m.history[:0]
	m.running = true
	m.record()
	return nil
}

func (m *Model) adjustConstant(factor float64) error {
	if len(m.constants) == 0 {
		return nil
	}
	name := m.constants[m.selected]
	v, err := m.inst.Variable(name)
	if err != nil {
		return err
	}
	m.cfg.Constants[name] = v * factor
	return m.restart()
}

// step advances up to stepsPerTick steps and pauses once the run reaches
// cfg.Duration.
func (m *Model) step() {
	for i := 0; i < m.stepsPerTick; i++ {
		if m.done() {
			m.running = false
			break
		}
		next := m.integrator.Step(m.inst, m.x, m.t, m.cfg.Dt)
		if !next.IsValid() {
			m.running = false
			m.err = &dynamo.SimulationError{Time: m.t, State: next, Wrapped: dynamo.ErrInvalidState}
			return
		}
		m.x = next
		m.steps++
		m.t = float64(m.steps) * m.cfg.Dt
	}
	m.record()
}

func (m *Model) done() bool {
	return m.cfg.Duration > 0 && m.t >= m.cfg.Duration-m.cfg.Dt/2
}

// Progress is the fraction of cfg.Duration covered so far.
func (m Model) Progress() float64 {
	if m.cfg.Duration <= 0 {
		return 0
	}
	return math.Min(m.t/m.cfg.Duration, 1)
}

// record loads the current state into the instance and appends it to the
// trail and history buffers.
func (m *Model) record() {
	copy(m.inst.States, m.x)
	if err := m.inst.ComputeVariables(m.t); err != nil {
		m.err = err
		m.running = false
		return
	}

	p := analysis.Point{X: m.x[m.xIdx], Y: m.x[m.yIdx]}
	if len(m.x) == 1 {
		p = analysis.Point{X: m.t, Y: m.x[0]}
	}
	m.trail = appendCapped(m.trail, p)
	m.history = appendCapped(m.history, m.x[m.yIdx])
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[len(s)-historyCapacity:]
	}
	return s
}

// View renders the TUI interface.
func (m Model) View() string {
	m.canvas.Clear()
	m.canvas.Plot(m.trail)

	states := m.module.StateInfo()
	var s strings.Builder

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = StatusFailed.Render("FAILED: " + m.err.Error())
	case m.done():
		status = StatusPaused.Render("DONE")
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	voi := m.module.VOIInfo()
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.module.Name())) + "\n")
	s.WriteString(fmt.Sprintf("%s  %s = %.3f %s  %s\n", status, voi.Name, m.t, voi.Units, ProgressBar(m.Progress(), 30)))

	axes := fmt.Sprintf("%s vs %s", states[m.yIdx].Name, states[m.xIdx].Name)
	if len(states) == 1 {
		axes = fmt.Sprintf("%s vs %s", states[0].Name, voi.Name)
	}
	left := canvasStyle.Render(Subtle.Render(axes) + "\n" + m.canvas.String())
	right := statsStyle.Render(m.stats())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))

	if len(m.history) > 1 {
		graph := asciigraph.Plot(m.history,
			asciigraph.Height(6),
			asciigraph.Width(canvasWidth),
			asciigraph.Caption(states[m.yIdx].Name+" ("+states[m.yIdx].Units+")"),
		)
		s.WriteString("\n" + graphStyle.Render(graph))
	}

	s.WriteString("\n" + KeyHint.Render("space pause · r restart · s swap axes · tab next constant · ↑/↓ adjust · q quit"))
	return s.String()
}

func (m Model) stats() string {
	var s strings.Builder

	s.WriteString(Title.Render("states") + "\n")
	for i, info := range m.module.StateInfo() {
		s.WriteString(fmt.Sprintf("%s %s  %s\n",
			MetricLabel.Render(fmt.Sprintf("%-10s", info.Name)),
			MetricValue.Render(fmt.Sprintf("%10.5f", m.inst.States[i])),
			Subtle.Render(fmt.Sprintf("d/d%s %+.4f", m.module.VOIInfo().Name, m.inst.Rates[i])),
		))
	}

	s.WriteString(Separator(44) + "\n" + Title.Render("variables") + "\n")
	for i, info := range m.module.VariableInfo() {
		label := fmt.Sprintf("%-10s", info.Name)
		if len(m.constants) > 0 && info.Name == m.constants[m.selected] {
			label = Selected.Render("▸ " + label)
		} else {
			label = MetricLabel.Render("  " + label)
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			label,
			MetricValue.Render(fmt.Sprintf("%10.5f", m.inst.Variables[i])),
			typeStyles[info.Type].Render(info.Type.String()),
		))
	}

	s.WriteString("\n" + SparklineChart(m.history, 36))
	return s.String()
}

func copyOverrides(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
