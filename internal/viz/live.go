package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"linkagelab/internal/linkage"
	"linkagelab/internal/mech"
)

const (
	canvasWidth     = 70
	canvasHeight    = 22
	historyCapacity = 600
	trailCapacity   = 220

	// world window around the mechanism, in meters
	worldHalfX = 1.7
	worldHalfY = 1.3
)

type TickMsg time.Time

type pixel struct{ x, y int }

// Model renders the closed-chain linkage live in the terminal, stepping
// the constrained dynamics between frames.
type Model struct {
	fb      *linkage.FourBar
	stepper mech.Stepper
	accel   mech.Accel

	q, v   mech.Vector
	q0, v0 mech.Vector
	t, dt  float64
	// physics steps per frame so sim time roughly tracks wall time
	substeps int

	canvas        *Canvas
	trail         []pixel
	energyHist    []float64
	violationHist []float64

	running bool
	failed  string

	params        map[string]float64
	initialParams map[string]float64
	paramKeys     []string
	selected      int

	showHelp bool
}

func NewModel(fb *linkage.FourBar, stepper mech.Stepper, accel mech.Accel, q0, v0 mech.Vector, dt float64) Model {
	params := fb.GetParams()
	initial := make(map[string]float64, len(params))
	keys := make([]string, 0, len(params))
	for k, v := range params {
		initial[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	substeps := int(1.0 / (60.0 * dt))
	if substeps < 1 {
		substeps = 1
	}

	return Model{
		fb:            fb,
		stepper:       stepper,
		accel:         accel,
		q:             q0.Clone(),
		v:             v0.Clone(),
		q0:            q0.Clone(),
		v0:            v0.Clone(),
		dt:            dt,
		substeps:      substeps,
		canvas:        NewCanvas(canvasWidth, canvasHeight),
		trail:         make([]pixel, 0, trailCapacity),
		energyHist:    make([]float64, 0, historyCapacity),
		violationHist: make([]float64, 0, historyCapacity),
		running:       true,
		params:        params,
		initialParams: initial,
		paramKeys:     keys,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.failed == "" {
			for i := 0; i < m.substeps; i++ {
				m.step()
			}
		}
		return m, tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m *Model) step() {
	newQ, newV, err := m.stepper.Step(m.q, m.v, make(mech.Vector, len(m.q)), m.t, m.dt, m.accel)
	if err != nil {
		m.failed = err.Error()
		m.running = false
		return
	}
	if !newQ.IsValid() || !newV.IsValid() {
		m.failed = "state diverged (NaN)"
		m.running = false
		return
	}
	m.q, m.v = newQ, newV
	m.t += m.dt

	m.energyHist = append(m.energyHist, m.fb.Energy(m.q, m.v))
	if len(m.energyHist) > historyCapacity {
		m.energyHist = m.energyHist[1:]
	}
	m.violationHist = append(m.violationHist, m.fb.Violation(m.q))
	if len(m.violationHist) > historyCapacity {
		m.violationHist = m.violationHist[1:]
	}

	if pts, err := m.fb.JointPoints(m.q); err == nil {
		x, y := m.toPixel((pts[2].X+pts[3].X)/2, (pts[2].Y+pts[3].Y)/2)
		m.trail = append(m.trail, pixel{x, y})
		if len(m.trail) > trailCapacity {
			m.trail = m.trail[1:]
		}
	}
}

func (m *Model) reset() {
	m.q = m.q0.Clone()
	m.v = m.v0.Clone()
	m.t = 0
	m.failed = ""
	m.running = true
	m.trail = m.trail[:0]
	m.energyHist = m.energyHist[:0]
	m.violationHist = m.violationHist[:0]
	for k, v := range m.initialParams {
		m.params[k] = v
		m.fb.SetParam(k, v)
	}
}

func (m *Model) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

func (m *Model) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.params[key] * factor
	if err := m.fb.SetParam(key, val); err != nil {
		return
	}
	m.params[key] = val
	// kd is rederived when kp changes
	for k, v := range m.fb.GetParams() {
		m.params[k] = v
	}
}

// toPixel maps world coordinates to canvas dot coordinates, y up.
func (m *Model) toPixel(x, y float64) (int, int) {
	pw, ph := m.canvas.PixelWidth(), m.canvas.PixelHeight()
	px := int((x + worldHalfX) / (2 * worldHalfX) * float64(pw))
	py := int((worldHalfY - y) / (2 * worldHalfY) * float64(ph))
	return px, py
}

func (m *Model) draw() {
	m.canvas.Clear()

	pts, err := m.fb.JointPoints(m.q)
	if err != nil {
		return
	}

	// ground hatching under the fixed pivots
	gx0, gy := m.toPixel(pts[0].X-0.15, 0)
	gx1, _ := m.toPixel(pts[1].X+0.15, 0)
	for x := gx0; x <= gx1; x += 4 {
		m.canvas.DrawLine(x, gy+1, x-2, gy+4)
	}

	px := make([]pixel, len(pts))
	for i, p := range pts {
		x, y := m.toPixel(p.X, p.Y)
		px[i] = pixel{x, y}
	}
	for i := 0; i+1 < len(px); i++ {
		m.canvas.DrawLine(px[i].x, px[i].y, px[i+1].x, px[i+1].y)
	}
	for _, p := range px {
		m.canvas.DrawCircle(p.x, p.y, 2)
	}

	for _, p := range m.trail {
		m.canvas.Set(p.x, p.y)
	}
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render("FOUR-BAR LINKAGE") + "\n")

	status := "RUNNING"
	if m.failed != "" {
		status = alertStyle.Render("FAILED: " + m.failed)
	} else if !m.running {
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")

	if len(m.energyHist) > 1 {
		chart := asciigraph.Plot(m.energyHist,
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs", m.t)) + "\n")
	if len(m.energyHist) > 0 {
		e := m.energyHist[len(m.energyHist)-1]
		s.WriteString(labelStyle.Render("Energy") + valueStyle.Render(fmt.Sprintf("%.3f J", e)) + "\n")
	}
	if len(m.violationHist) > 0 {
		c := m.violationHist[len(m.violationHist)-1]
		line := valueStyle.Render(fmt.Sprintf("%.2e m", c))
		if c > 1e-3 {
			line = alertStyle.Render(fmt.Sprintf("%.2e m", c))
		}
		s.WriteString(labelStyle.Render("Closure") + line + "\n")
	}
	s.WriteString(labelStyle.Render("Crank") + valueStyle.Render(fmt.Sprintf("%.3f rad", math.Mod(m.q[0], 2*math.Pi))) + "\n")

	s.WriteString("\nPARAMETERS\n")
	for i, k := range m.paramKeys {
		line := fmt.Sprintf("%-10s %.3f", k, m.params[k])
		if i == m.selected {
			s.WriteString(activeStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}

	s.WriteString(helpStyle.Render("\n──────────────────────\nSP:Pause R:Reset Q:Quit\nTab:Param ↑↓:Tune ?:Help"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpOverlay + "\n" + view
	}
	return view
}

const helpOverlay = `
╔═══════════════════════════════════╗
║         KEYBOARD SHORTCUTS        ║
╠═══════════════════════════════════╣
║  Space  - Pause/Resume            ║
║  R      - Reset to initial state  ║
║  Tab    - Cycle tunable params    ║
║  Up/K   - Increase param (+5%)    ║
║  Down/J - Decrease param (-5%)    ║
║  ?      - Toggle this help        ║
║  Q      - Quit                    ║
╚═══════════════════════════════════╝`
