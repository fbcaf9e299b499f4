package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/rocketland/internal/config"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444455"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

var presetInfo = map[string]string{
	"nominal": "reference landing",
	"offset":  "large lateral offset",
	"steep":   "narrow cones, high start",
	"noisy":   "disturbed closed loop",
}

// Launcher solves the reference for cfg and returns the closed loop to
// show.
type Launcher func(ctx context.Context, cfg *config.Config) (Stepper, Scene, error)

const (
	stateMenu = iota
	stateConfig
	stateSolving
	stateSim
)

type param struct {
	name string
	ptr  func(*config.Config) *float64
	step float64
}

var params = []param{
	{"x", func(c *config.Config) *float64 { return &c.InitState.X }, 0.5},
	{"y", func(c *config.Config) *float64 { return &c.InitState.Y }, 0.5},
	{"z", func(c *config.Config) *float64 { return &c.InitState.Z }, 1},
	{"vx", func(c *config.Config) *float64 { return &c.InitState.VX }, 0.5},
	{"vy", func(c *config.Config) *float64 { return &c.InitState.VY }, 0.5},
	{"vz", func(c *config.Config) *float64 { return &c.InitState.VZ }, 0.5},
	{"noise", func(c *config.Config) *float64 { return &c.MPC.Noise.Position }, 0.005},
}

type launchedMsg struct {
	stepper Stepper
	scene   Scene
	err     error
}

type model struct {
	ctx    context.Context
	launch Launcher

	state, cursor int
	presets       []string
	selected      string
	cfg           *config.Config
	paramCursor   int
	err           error
	liveModel     Model
}

func NewInteractiveApp(ctx context.Context, launch Launcher) *model {
	return &model{
		ctx:     ctx,
		launch:  launch,
		state:   stateMenu,
		presets: config.ListPresets(),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case launchedMsg:
		if msg.err != nil {
			m.err, m.state = msg.err, stateConfig
			return m, nil
		}
		m.liveModel = NewModel(m.ctx, msg.stepper, msg.scene)
		m.state = stateSim
		return m, m.liveModel.Init()
	default:
		if m.state == stateSim {
			newLive, cmd := m.liveModel.Update(msg)
			m.liveModel = newLive.(Model)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSolving:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case stateSim:
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
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
		cfg := config.GetPreset(m.presets[m.cursor])
		if cfg == nil {
			return m, nil
		}
		m.selected, m.cfg = m.presets[m.cursor], cfg
		m.state, m.paramCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "left", "h":
		p := params[m.paramCursor]
		*p.ptr(m.cfg) -= p.step
	case "right", "l":
		p := params[m.paramCursor]
		*p.ptr(m.cfg) += p.step
	case "s", "enter":
		m.state, m.err = stateSolving, nil
		return m, m.start()
	}
	return m, nil
}

// start solves the reference off the UI loop.
func (m model) start() tea.Cmd {
	ctx, launch, cfg := m.ctx, m.launch, m.cfg.Clone()
	cfg.MPC.Noise.Velocity = cfg.MPC.Noise.Position / 10
	return func() tea.Msg {
		stepper, scene, err := launch(ctx, cfg)
		return launchedMsg{stepper: stepper, scene: scene, err: err}
	}
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSolving:
		return "\n\n    " + cyan.Render(strings.ToUpper(m.selected)) + "\n    " + dim.Render("solving reference trajectory...") + "\n"
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func hint(key, what string) string {
	return cyan.Render(key) + dim.Render(" "+what+"  ")
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + cyan.Render("ROCKETLAND") + "\n    " + dim.Render("powered descent guidance") + "\n    " + dim.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cyan.Render("▸"), white.Render(fmt.Sprintf("%-12s", name)), magenta.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", dimmer.Render(fmt.Sprintf("  %-12s", name)), dimmer.Render(desc)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + red.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hint("j/k", "navigate") + hint("enter", "select") + hint("q", "quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + cyan.Render(strings.ToUpper(m.selected)) + "\n    " + dim.Render(presetInfo[m.selected]) + "\n    " + dim.Render("─────────────────────────") + "\n\n")
	for i, p := range params {
		valStr := fmt.Sprintf("%8.3f", *p.ptr(m.cfg))
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cyan.Render("▸"), white.Render(fmt.Sprintf("%-8s", p.name)), magenta.Render(valStr)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", dimmer.Render(fmt.Sprintf("  %-8s", p.name)), dimmer.Render(valStr)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + red.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hint("j/k", "select") + hint("h/l", "adjust") + hint("s", "start") + hint("esc", "back") + "\n")
	return b.String()
}

func RunInteractive(ctx context.Context, launch Launcher) error {
	_, err := tea.NewProgram(NewInteractiveApp(ctx, launch), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
