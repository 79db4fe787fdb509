package viz

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/onsi/gomega"

	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/experiment"
)

func TestCanvas(t *testing.T) {
	g := gomega.NewWithT(t)

	c := NewCanvas(4, 2)
	w, h := c.Dots()
	g.Expect(w).To(gomega.Equal(8))
	g.Expect(h).To(gomega.Equal(8))

	c.Set(0, 0)
	c.Set(1, 3)
	g.Expect(c.Grid[0][0]).To(gomega.Equal(rune(brailleBlank | 0x1 | 0x80)))

	// Out of range writes are ignored.
	c.Set(-1, 0)
	c.Set(100, 100)

	c.DrawLine(0, 4, 7, 4)
	for col := 0; col < 4; col++ {
		g.Expect(c.Grid[1][col]).NotTo(gomega.Equal(rune(brailleBlank)))
	}

	g.Expect(strings.Count(c.String(), "\n")).To(gomega.Equal(1))

	c.Clear()
	g.Expect(c.String()).To(gomega.Equal(strings.Repeat(string(rune(brailleBlank)), 4) + "\n" + strings.Repeat(string(rune(brailleBlank)), 4)))
}

func TestCanvasArrow(t *testing.T) {
	g := gomega.NewWithT(t)

	c := NewCanvas(10, 5)
	c.DrawArrow(10, 10, math.Pi/2, 8)
	// Pointing up: the tip two cells above the base is drawn.
	g.Expect(c.Grid[0][5]).NotTo(gomega.Equal(rune(brailleBlank)))
	g.Expect(c.Grid[4][5]).To(gomega.Equal(rune(brailleBlank)))
}

func newTestModel(g *gomega.WithT) Model {
	exp, err := experiment.New("square", config.GetPreset("square"), nil)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	return NewModel(exp)
}

func TestModelAdvances(t *testing.T) {
	g := gomega.NewWithT(t)

	m := newTestModel(g)
	next, cmd := m.Update(frameMsg{})
	g.Expect(cmd).NotTo(gomega.BeNil())
	m = next.(Model)

	g.Expect(m.t).To(gomega.BeNumerically("~", float64(m.ticksPerFrame())*m.dt, 1e-9))
	g.Expect(m.statuses).To(gomega.HaveLen(4))
	g.Expect(m.errHist).To(gomega.HaveLen(1))
	g.Expect(m.View()).To(gomega.ContainSubstring("SQUARE"))
}

func TestModelPauseAndReset(t *testing.T) {
	g := gomega.NewWithT(t)

	m := newTestModel(g)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(Model)
	g.Expect(m.running).To(gomega.BeFalse())

	next, _ = m.Update(frameMsg{})
	m = next.(Model)
	g.Expect(m.t).To(gomega.BeZero())

	m.running = true
	next, _ = m.Update(frameMsg{})
	m = next.(Model)
	g.Expect(m.t).To(gomega.BeNumerically(">", 0))

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	g.Expect(m.t).To(gomega.BeZero())
	g.Expect(m.errHist).To(gomega.BeEmpty())
}

func TestModelManualDrive(t *testing.T) {
	g := gomega.NewWithT(t)

	m := newTestModel(g)
	press := func(r rune) {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	press('m')
	g.Expect(m.manual).To(gomega.BeTrue())
	press('k')
	press('k')
	press('a')

	next, _ := m.Update(frameMsg{})
	m = next.(Model)
	tw := m.exp.Chassis().Twist()
	g.Expect(tw.Vx).To(gomega.BeNumerically("~", 2*manualStep, 1e-12))
	g.Expect(tw.Omega).To(gomega.BeNumerically("~", manualTurnStep, 1e-12))

	press('m')
	g.Expect(m.manual).To(gomega.BeFalse())
}

func TestThemeCycle(t *testing.T) {
	g := gomega.NewWithT(t)

	th := Themes[0]
	for range Themes {
		th = th.next()
	}
	g.Expect(th.Name).To(gomega.Equal(Themes[0].Name))
	g.Expect(GetTheme("nope").Name).To(gomega.Equal(Themes[0].Name))
	g.Expect(ThemeNames()).To(gomega.HaveLen(len(Themes)))
}

func TestCanvasSVG(t *testing.T) {
	g := gomega.NewWithT(t)

	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	var b strings.Builder
	g.Expect(c.WriteSVG(&b, 2, "#00ff00", "#000000")).To(gomega.Succeed())
	svg := b.String()
	g.Expect(svg).To(gomega.ContainSubstring(`width="8" height="8"`))
	g.Expect(strings.Count(svg, "<circle")).To(gomega.Equal(2))
	g.Expect(svg).To(gomega.ContainSubstring(`cx="1.0" cy="1.0"`))
	g.Expect(svg).To(gomega.ContainSubstring(`cx="7.0" cy="7.0"`))
}

func TestModelGainTuning(t *testing.T) {
	g := gomega.NewWithT(t)

	m := newTestModel(g)
	p0 := m.gainValue()
	g.Expect(p0).To(gomega.Equal(config.DefaultPivotGains().P))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	m = next.(Model)
	for i := 0; i < m.exp.Controller().Len(); i++ {
		g.Expect(m.exp.Controller().Module(i).PivotPID().P).To(gomega.BeNumerically("~", p0*1.1, 1e-12))
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	m = next.(Model)
	g.Expect(tunable[m.gain]).To(gomega.Equal("pivot.d"))

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	g.Expect(m.exp.Controller().Module(0).PivotPID().P).To(gomega.Equal(p0))
}
