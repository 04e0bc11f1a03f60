// Package console is a terminal dashboard for the control loop. It shows
// the loop state, an FPS chart, the current command and the parameter
// values, and lets the operator drive with the arrow keys.
package console

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/params"
)

// Key bindings step the manual controls by this much.
const step = 5

const (
	chartWidth  = 60
	chartHeight = 10
	maxFPS      = 60
	fpsSeries   = "fps"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("250"))
	valueStyle  = lipgloss.NewStyle().Width(5).Align(lipgloss.Right).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Messages from the loop
type statusMsg loop.Status

func waitForStatus(updates <-chan loop.Status) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-updates)
	}
}

// Model is the bubbletea model behind the console.
type Model struct {
	store   *params.MemoryStore
	quit    *atomic.Bool
	updates <-chan loop.Status
	chart   *streamlinechart.Model
	status  loop.Status
	width   int

	quitting bool
}

// NewModel creates a model that edits store, raises quit on q/ctrl+c and
// follows the statuses arriving on updates.
func NewModel(store *params.MemoryStore, quit *atomic.Bool, updates <-chan loop.Status) Model {
	chart := streamlinechart.New(chartWidth, chartHeight,
		streamlinechart.WithYRange(0, maxFPS),
	)
	chart.SetDataSetStyles(fpsSeries, runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("10")))

	return Model{
		store:   store,
		quit:    quit,
		updates: updates,
		chart:   &chart,
		status:  loop.Status{State: loop.Starting},
	}
}

func (m Model) Init() tea.Cmd {
	return waitForStatus(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit.Store(true)
			m.quitting = true
			return m, tea.Quit
		case "left":
			m.store.Adjust(params.SteerOffset, -step)
		case "right":
			m.store.Adjust(params.SteerOffset, step)
		case "up":
			m.store.Adjust(params.Speed, step)
		case "down":
			m.store.Adjust(params.Speed, -step)
		case " ":
			m.store.Set(params.Speed, 0)
		}
		return m, nil

	case statusMsg:
		st := loop.Status(msg)
		if st.Cycles > m.status.Cycles {
			m.chart.PushDataSet(fpsSeries, st.FPS)
			m.chart.DrawAll()
		}
		m.status = st
		if st.State == loop.Terminated {
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForStatus(m.updates)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "Console closed.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("PiCar"))
	sb.WriteString(fmt.Sprintf(" - %s", m.status.State))
	if m.status.Strategy != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%s]", m.status.Strategy)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("fps %.2f  cycles %d\n", m.status.FPS, m.status.Cycles))
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.status.Command.String())
	conn := "connected"
	if !m.status.Connected {
		conn = "disconnected"
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  (%s, %d sent, %d failed)",
		conn, m.status.Dispatched, m.status.DispatchFailures)))
	sb.WriteString("\n\n")

	sb.WriteString(renderParams(m.store.Snapshot()))
	sb.WriteString("\n")

	if m.status.Error != "" {
		sb.WriteString(errorStyle.Render(m.status.Error))
		sb.WriteString("\n")
	}
	sb.WriteString(statusStyle.Render("←/→ steer  ↑/↓ speed  space stop  q quit"))
	sb.WriteString("\n")

	return sb.String()
}

func renderParams(s params.Snapshot) string {
	values := s.Values()
	var rows []string
	for _, sp := range params.Specs() {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(sp.Label),
			valueStyle.Render(fmt.Sprintf("%d", values[sp.Name])),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Console runs the model as a full-screen program and bridges it to the
// loop hooks.
type Console struct {
	program *tea.Program
	quit    atomic.Bool
	updates chan loop.Status
}

// Ensure Console implements the loop hooks
var (
	_ loop.QuitPoller = (*Console)(nil)
	_ loop.Observer   = (*Console)(nil)
)

// New creates a console over store. Call Run to take over the terminal.
func New(store *params.MemoryStore, opts ...tea.ProgramOption) *Console {
	c := &Console{updates: make(chan loop.Status, 1)}
	c.program = tea.NewProgram(NewModel(store, &c.quit, c.updates), opts...)
	return c
}

// Run blocks until the operator quits or the loop terminates.
func (c *Console) Run() error {
	_, err := c.program.Run()
	c.quit.Store(true)
	return err
}

// QuitRequested implements loop.QuitPoller.
func (c *Console) QuitRequested() bool {
	return c.quit.Load()
}

// Observe implements loop.Observer. It never blocks: a status the screen
// has not picked up yet is replaced by the newer one.
func (c *Console) Observe(s loop.Status) {
	for {
		select {
		case c.updates <- s:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}
