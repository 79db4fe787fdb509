package viz

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/swerve/internal/control"
	"github.com/san-kum/swerve/internal/experiment"
	"github.com/san-kum/swerve/internal/sim"
	"github.com/san-kum/swerve/internal/swerve"
)

const (
	canvasWidth     = 60
	canvasHeight    = 24
	historyCapacity = 300
	frameRate       = 30

	manualStep      = 0.1 // m/s per key press
	manualTurnStep  = 0.2 // rad/s per key press
	arrowMin        = 4.0
	arrowMax        = 12.0
	arrowFullSpeed  = 1.5 // m/s drawn at arrowMax
	targetDotRadius = 9.0
)

var speeds = []float64{0.25, 0.5, 1, 2, 4}

// tunable gains, applied to every module at once.
var tunable = []string{"pivot.p", "pivot.d", "wheel.p", "wheel.i"}

type frameMsg time.Time

func nextFrame() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Model steps an experiment in real time and renders it.
type Model struct {
	exp      *experiment.Experiment
	x        sim.State
	t, dt    float64
	speed    int
	running  bool
	manual   bool
	twist    *swerve.Twist
	selected int
	gain     int
	statuses []swerve.Status
	canvas   *Canvas
	errHist  []float64
	theme    Theme
	styles   styles
	showHelp bool
	notice   string
}

func NewModel(exp *experiment.Experiment) Model {
	m := Model{
		exp:     exp,
		dt:      exp.SimConfig().Dt,
		speed:   2,
		running: true,
		twist:   &swerve.Twist{},
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		errHist: make([]float64, 0, historyCapacity),
		theme:   Themes[0],
	}
	m.styles = newStyles(m.theme)
	m.reset()
	return m
}

func (m Model) Init() tea.Cmd { return nextFrame() }

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
		case "m":
			m.setManual(!m.manual)
		case "tab":
			m.selected = (m.selected + 1) % m.exp.Controller().Len()
		case "+", "=":
			if m.speed < len(speeds)-1 {
				m.speed++
			}
		case "-", "_":
			if m.speed > 0 {
				m.speed--
			}
		case "t":
			m.theme = m.theme.next()
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		case "p":
			m.snapshot()
		case "g":
			m.gain = (m.gain + 1) % len(tunable)
		case "]":
			m.adjustGain(1.1)
		case "[":
			m.adjustGain(1 / 1.1)
		default:
			if m.manual {
				m.drive(msg.String())
			}
		}
	case frameMsg:
		if m.running {
			m.advance()
		}
		return m, nextFrame()
	}
	return m, nil
}

func (m *Model) drive(key string) {
	switch key {
	case "up", "k":
		m.twist.Vx += manualStep
	case "down", "j":
		m.twist.Vx -= manualStep
	case "left", "h":
		m.twist.Vy += manualStep
	case "right", "l":
		m.twist.Vy -= manualStep
	case "a":
		m.twist.Omega += manualTurnStep
	case "d":
		m.twist.Omega -= manualTurnStep
	case "s":
		*m.twist = swerve.Twist{}
	}
}

// setManual switches the chassis between the keyboard twist and the
// configured profile.
func (m *Model) setManual(on bool) {
	m.manual = on
	if on {
		tw := m.twist
		m.exp.Chassis().SetCommand(func(float64) swerve.Twist { return *tw })
		return
	}
	m.exp.Chassis().SetCommand(m.exp.Profile().At)
}

// ticksPerFrame is the number of control ticks simulated per frame at the
// current speed.
func (m *Model) ticksPerFrame() int {
	n := int(math.Round(speeds[m.speed] / (frameRate * m.dt)))
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) advance() {
	s := m.exp.GetSimulator()
	for i := m.ticksPerFrame(); i > 0; i-- {
		next, _ := s.Step(m.x, m.t, m.dt)
		if !next.IsValid() {
			m.running = false
			break
		}
		m.x = next
		m.t += m.dt
	}
	m.statuses = m.exp.Controller().Statuses(m.statuses)

	m.errHist = append(m.errHist, steeringRMS(m.statuses))
	if len(m.errHist) > historyCapacity {
		m.errHist = m.errHist[1:]
	}
}

func (m *Model) pid(i int, joint string) *control.PID {
	mod := m.exp.Controller().Module(i)
	if joint == "wheel" {
		return mod.WheelPID()
	}
	return mod.PivotPID()
}

// adjustGain scales the selected gain of every module. A zero gain is
// started at 0.01.
func (m *Model) adjustGain(factor float64) {
	joint, param, _ := strings.Cut(tunable[m.gain], ".")
	for i := 0; i < m.exp.Controller().Len(); i++ {
		pid := m.pid(i, joint)
		v := pid.GetParams()[param] * factor
		if v == 0 && factor > 1 {
			v = 0.01
		}
		_ = pid.SetParam(param, v)
	}
}

func (m *Model) gainValue() float64 {
	joint, param, _ := strings.Cut(tunable[m.gain], ".")
	return m.pid(0, joint).GetParams()[param]
}

// restoreGains puts back the configured gains.
func (m *Model) restoreGains() {
	cfg := m.exp.Config()
	for i := 0; i < m.exp.Controller().Len(); i++ {
		mc := cfg.Modules[m.exp.Controller().Module(i).Name()]
		m.pid(i, "pivot").Gains = mc.Pivot.PID
		m.pid(i, "wheel").Gains = mc.Wheel.PID
	}
}

func (m *Model) reset() {
	m.restoreGains()
	m.x = m.exp.InitialState()
	m.t = 0
	m.exp.Chassis().Reset()
	m.statuses = m.exp.Controller().Statuses(m.statuses)
	m.errHist = m.errHist[:0]
	*m.twist = swerve.Twist{}
}

// snapshot writes the current chassis drawing to an SVG file in the working
// directory.
func (m *Model) snapshot() {
	m.draw()
	name := fmt.Sprintf("%s_%06.0fms.svg", m.exp.Name(), m.t*1000)
	f, err := os.Create(name)
	if err != nil {
		m.notice = err.Error()
		return
	}
	defer f.Close()
	if err := m.canvas.WriteSVG(f, 4, string(m.theme.Secondary), "#0a0a0a"); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = "saved " + name
}

func steeringRMS(st []swerve.Status) float64 {
	if len(st) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range st {
		sum += s.PivotError * s.PivotError
	}
	return math.Sqrt(sum / float64(len(st)))
}

// draw renders the chassis top down: forward is up, left is left.
func (m *Model) draw() {
	c := m.canvas
	c.Clear()

	ctrl := m.exp.Controller()
	extent := 0.0
	for i := 0; i < ctrl.Len(); i++ {
		p := ctrl.Module(i).Position
		extent = math.Max(extent, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	if extent == 0 {
		extent = 1
	}
	w, h := c.Dots()
	scale := float64(min(w, h)) / (3.2 * extent)
	cx, cy := w/2, h/2
	screen := func(x, y float64) (int, int) {
		return cx - int(math.Round(y*scale)), cy - int(math.Round(x*scale))
	}

	bx0, by0 := screen(extent, extent)
	bx1, by1 := screen(-extent, -extent)
	c.DrawRect(bx0, by0, bx1, by1)
	// Heading marker at the front edge.
	fx, fy := screen(extent*1.2, 0)
	c.Dot(fx-1, fy-1)

	for i := 0; i < ctrl.Len(); i++ {
		mod := ctrl.Module(i)
		sx, sy := screen(mod.Position.X, mod.Position.Y)
		base := i * sim.ModuleStateDim
		angle := m.x[base+sim.PivotAngle]
		rate := m.x[base+sim.WheelRate]

		speed := math.Abs(rate * mod.WheelRadius)
		length := arrowMin + (arrowMax-arrowMin)*math.Min(1, speed/arrowFullSpeed)
		a := angle + math.Pi/2
		if rate < 0 {
			a += math.Pi
		}
		c.DrawArrow(sx, sy, a, length)

		if i < len(m.statuses) {
			st := m.statuses[i]
			ta := st.Target.Angle + math.Pi/2
			if st.WheelSpeed < 0 {
				ta += math.Pi
			}
			c.Set(sx+int(math.Round(targetDotRadius*math.Cos(ta))), sy-int(math.Round(targetDotRadius*math.Sin(ta))))
		}
		if i == m.selected {
			c.Dot(sx-1, sy-1)
		}
	}
}

func (m Model) View() string {
	m.draw()
	s := m.styles
	canvasView := s.canvas.Render(m.canvas.String())

	var b strings.Builder
	b.WriteString(s.header.Render(strings.ToUpper(m.exp.Name())) + "\n")

	status := s.running.Render("RUNNING")
	if !m.running {
		status = s.paused.Render("PAUSED")
	}
	source := "profile"
	if m.manual {
		source = "manual"
	}
	b.WriteString(fmt.Sprintf("%s  %s  x%g\n", status, source, speeds[m.speed]))
	b.WriteString(s.muted.Render(m.notice) + "\n\n")

	tw := m.exp.Chassis().Twist()
	b.WriteString(s.label.Render("Time") + s.value.Render(fmt.Sprintf("%.2fs", m.t)) + "\n")
	b.WriteString(s.label.Render("Twist") + s.value.Render(fmt.Sprintf("vx %+.2f  vy %+.2f  ω %+.2f", tw.Vx, tw.Vy, tw.Omega)) + "\n")
	scale := m.exp.Controller().Scale()
	scaleLine := s.bar(scale, 16) + s.value.Render(fmt.Sprintf(" %.2f", scale))
	if scale < 1 {
		scaleLine += " " + s.warn.Render("LIMITED")
	}
	b.WriteString(s.label.Render("Scale") + scaleLine + "\n")
	b.WriteString(s.label.Render("Gain") + s.selected.Render(fmt.Sprintf("%s = %.4g", tunable[m.gain], m.gainValue())) + "\n\n")

	b.WriteString(s.label.Render("module") + s.value.Render(fmt.Sprintf("%7s %7s %8s", "angle°", "err°", "wheel")) + "\n")
	ctrl := m.exp.Controller()
	for i, st := range m.statuses {
		flags := ""
		if st.Flipped {
			flags += "F"
		}
		if st.Held {
			flags += "H"
		}
		line := fmt.Sprintf("%7.1f %7.1f %8.2f %s",
			st.Angle*180/math.Pi, st.PivotError*180/math.Pi, st.WheelRate, flags)
		name := truncate(ctrl.Module(i).Name(), 11)
		if i == m.selected {
			b.WriteString(s.selected.Render(fmt.Sprintf("%-12s", name)+line) + "\n")
		} else {
			b.WriteString(s.label.Render(name) + s.value.Render(line) + "\n")
		}
	}

	if len(m.errHist) > 1 {
		chart := asciigraph.Plot(m.errHist, asciigraph.Height(5), asciigraph.Width(32), asciigraph.Caption("steering error (rad)"))
		b.WriteString(s.graph.Render(chart) + "\n")
	}

	b.WriteString(s.help.Render(separator(32) + "\nSP:Pause R:Reset M:Manual Q:Quit\nTab:Module +/-:Speed T:Theme\nG:Gain [ ]:Tune P:Snapshot ?:Help"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, s.panel.Render(b.String()))
	if m.showHelp {
		return helpText + "\n\n" + view
	}
	return view
}

const helpText = `
  Space      pause / resume
  R          reset to the initial state
  M          toggle manual driving
    ↑/↓      forward speed ±0.1 m/s
    ←/→      sideways speed ±0.1 m/s
    A/D      turn rate ±0.2 rad/s
    S        stop
  Tab        select module
  +/-        simulation speed
  G          select gain
  [ / ]      gain ÷1.1 / ×1.1 on every module
  T          cycle themes
  P          save an SVG snapshot
  ?          toggle this help
  Q          quit`

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// Run shows the live view of exp until the user quits.
func Run(exp *experiment.Experiment) error {
	_, err := tea.NewProgram(NewModel(exp), tea.WithAltScreen()).Run()
	return err
}
