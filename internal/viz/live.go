package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/mpc"
)

const (
	canvasWidth     = 60
	canvasHeight    = 20
	historyCapacity = 600
	tickRate        = time.Second / 30
)

// Stepper advances a closed loop one step at a time. *mpc.Driver
// implements it.
type Stepper interface {
	Step(ctx context.Context) (mpc.Step, error)
	Done() bool
	Iterations() int
}

// Scene describes what the live view draws besides the flown path.
type Scene struct {
	Title     string
	Reference []dynamo.State
	// GlideTan is the horizontal reach per metre of height of the glide
	// slope cone; zero hides it.
	GlideTan float64
}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the bubbletea model of a live MPC run.
type Model struct {
	ctx     context.Context
	stepper Stepper
	scene   Scene

	theme  Theme
	styles Styles
	canvas *Canvas
	camera *Camera

	flown    []dynamo.State
	steps    []mpc.Step
	altitude []float64
	tracking []float64

	running  bool
	view3D   bool
	showHelp bool
	err      error
}

// NewModel starts on the first reference state. ctx bounds every solve.
func NewModel(ctx context.Context, stepper Stepper, scene Scene) Model {
	m := Model{
		ctx:     ctx,
		stepper: stepper,
		scene:   scene,
		theme:   Themes[0],
		styles:  NewStyles(Themes[0]),
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		camera:  NewCamera(),
		running: true,
	}
	if len(scene.Reference) > 0 {
		x0 := scene.Reference[0].Clone()
		m.flown = append(m.flown, x0)
		m.altitude = append(m.altitude, x0[2])
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Steps() []mpc.Step { return m.steps }
func (m Model) Err() error        { return m.err }
func (m Model) Running() bool     { return m.running }

// Update handles input events and steps the closed loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.running = !m.running
		case "n":
			m.step()
		case "v":
			m.view3D = !m.view3D
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = NewStyles(m.theme)
		case "left", "h":
			m.camera.RotateYaw(-0.1)
		case "right", "l":
			m.camera.RotateYaw(0.1)
		case "up", "k":
			m.camera.RotatePitch(0.1)
		case "down", "j":
			m.camera.RotatePitch(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		if m.err != nil || m.stepper.Done() {
			m.running = false
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// step advances the loop once unless it is finished or failed.
func (m *Model) step() {
	if m.err != nil || m.stepper.Done() {
		return
	}
	st, err := m.stepper.Step(m.ctx)
	if err != nil {
		m.err = err
		return
	}
	m.steps = append(m.steps, st)
	m.flown = append(m.flown, st.State)
	m.altitude = appendCapped(m.altitude, st.State[2])
	m.tracking = appendCapped(m.tracking, st.TrackingError)
}

func appendCapped(vs []float64, v float64) []float64 {
	vs = append(vs, v)
	if len(vs) > historyCapacity {
		vs = vs[1:]
	}
	return vs
}

// draw renders the scene into the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	if m.view3D {
		Render3D(m.canvas, LandingScene(m.scene.Reference, m.flown, m.scene.GlideTan, m.top()), m.camera)
		return
	}
	m.drawSide()
}

func (m *Model) top() float64 {
	top := 1.0
	for _, x := range m.scene.Reference {
		top = math.Max(top, x[2])
	}
	for _, x := range m.flown {
		top = math.Max(top, x[2])
	}
	return top
}

// drawSide draws the x-z plane: ground, glide slope, reference and flown
// path.
func (m *Model) drawSide() {
	top := m.top() * 1.05
	reach := 1.0
	for _, xs := range [][]dynamo.State{m.scene.Reference, m.flown} {
		for _, x := range xs {
			reach = math.Max(reach, math.Abs(x[0]))
		}
	}
	if m.scene.GlideTan > 0 {
		reach = math.Max(reach, math.Min(m.scene.GlideTan*top, 3*reach))
	}
	f := NewFrame(m.canvas, -reach, reach, 0, top)

	m.canvas.Line(f, -reach, 0, reach, 0)
	if g := m.scene.GlideTan; g > 0 {
		h := math.Min(top, reach/g)
		m.canvas.Line(f, 0, 0, g*h, h)
		m.canvas.Line(f, 0, 0, -g*h, h)
	}
	for i := 0; i < len(m.scene.Reference); i += 3 {
		x := m.scene.Reference[i]
		m.canvas.Plot(f, x[0], x[2])
	}
	for i := 1; i < len(m.flown); i++ {
		a, b := m.flown[i-1], m.flown[i]
		m.canvas.Line(f, a[0], a[2], b[0], b[2])
	}
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.Bad.Render("FAILED")
	case m.stepper.Done():
		return m.styles.Good.Render("LANDED")
	case !m.running:
		return m.styles.Warn.Render("PAUSED")
	}
	return m.styles.Good.Render("RUNNING")
}

func (m Model) row(label, value string) string {
	return m.styles.Label.Render(label) + m.styles.Value.Render(value) + "\n"
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	var s strings.Builder

	title := m.scene.Title
	if title == "" {
		title = "rocket landing"
	}
	s.WriteString(m.styles.Header.Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	total := m.stepper.Iterations()
	progress := 0.0
	if total > 0 {
		progress = float64(len(m.steps)) / float64(total)
	}
	s.WriteString(ProgressBar(progress, 30) + fmt.Sprintf(" %d/%d\n\n", len(m.steps), total))

	if len(m.steps) > 0 {
		st := m.steps[len(m.steps)-1]
		s.WriteString(m.row("Time", fmt.Sprintf("%.2fs", st.Time)))
		s.WriteString(m.row("Solver", st.Status.String()))
		s.WriteString(m.row("Iterations", fmt.Sprintf("%d", st.Iterations)))
		s.WriteString(m.row("Solve time", st.SolveTime.Round(time.Microsecond).String()))
		s.WriteString(m.row("Tracking", fmt.Sprintf("%.4f", st.TrackingError)))
		s.WriteString(m.row("Thrust", fmt.Sprintf("%.1f N", st.Control.Norm())))
	}
	if len(m.flown) > 0 {
		x := m.flown[len(m.flown)-1]
		s.WriteString(m.row("Position", fmt.Sprintf("(%.2f, %.2f, %.2f)", x[0], x[1], x[2])))
		s.WriteString(m.row("Velocity", fmt.Sprintf("(%.2f, %.2f, %.2f)", x[3], x[4], x[5])))
	}

	if len(m.altitude) > 1 {
		chart := asciigraph.Plot(m.altitude, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("Altitude (m)"))
		s.WriteString("\n" + m.styles.Graph.Render(chart) + "\n")
	}
	if len(m.tracking) > 0 {
		s.WriteString("\n" + m.styles.Label.Render("Tracking") + Sparkline(m.tracking, 28) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + m.styles.Bad.Render(m.err.Error()) + "\n")
	}
	s.WriteString(m.styles.Help.Render("SP:Pause N:Step V:View T:Theme Q:Quit ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, m.canvas.String(), m.styles.Panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space/P   pause or resume
  N         advance one step
  V         toggle side and 3D view
  ←→ / H L  rotate camera
  ↑↓ / K J  tilt camera
  + -       zoom
  T         cycle themes
  Q         quit
`

// Run shows the live view until the loop finishes and the user quits.
func Run(ctx context.Context, stepper Stepper, scene Scene) ([]mpc.Step, error) {
	final, err := tea.NewProgram(NewModel(ctx, stepper, scene), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(Model)
	return m.Steps(), m.Err()
}

// Succeeded counts the steps whose solve succeeded.
func Succeeded(steps []mpc.Step) int {
	n := 0
	for _, st := range steps {
		if st.Status == altro.Succeeded {
			n++
		}
	}
	return n
}
