package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/experiment"
)

// menu picks a preset and then hands over to the live Model.
type menu struct {
	presets []string
	cursor  int
	live    *Model
	err     error
	logger  *zap.Logger
	styles  styles
}

func NewMenu(logger *zap.Logger) tea.Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return menu{
		presets: config.ListPresets(),
		logger:  logger,
		styles:  newStyles(Themes[0]),
	}
}

func (m menu) Init() tea.Cmd { return nil }

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.live != nil {
		next, cmd := m.live.Update(msg)
		live := next.(Model)
		m.live = &live
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		name := m.presets[m.cursor]
		exp, err := experiment.New(name, config.GetPreset(name), m.logger)
		if err != nil {
			m.err = err
			return m, nil
		}
		live := NewModel(exp)
		m.live = &live
		return m, live.Init()
	}
	return m, nil
}

func (m menu) View() string {
	if m.live != nil {
		return m.live.View()
	}

	s := m.styles
	var b strings.Builder
	b.WriteString("\n\n    " + s.header.Render("SWERVESIM") + "\n")
	b.WriteString("    " + s.muted.Render("pick a chassis preset") + "\n\n")
	for i, name := range m.presets {
		cfg := config.GetPreset(name)
		desc := fmt.Sprintf("%d modules, %.1fs, limiter %s", len(cfg.Modules), cfg.Duration, cfg.Limiter.Type)
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", s.selected.Render("▸"), s.selected.Render(fmt.Sprintf("%-10s", name)), s.value.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", s.muted.Render(fmt.Sprintf("%-10s", name)), s.muted.Render(desc)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + s.warn.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + s.muted.Render("j/k navigate  enter select  q quit") + "\n")
	return b.String()
}

// RunInteractive shows the preset menu.
func RunInteractive(logger *zap.Logger) error {
	_, err := tea.NewProgram(NewMenu(logger), tea.WithAltScreen()).Run()
	return err
}
