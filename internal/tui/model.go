package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"xgate/internal/app"
	"xgate/internal/controller"
)

const refreshEvery = 2 * time.Second

// Controller defines the subset of app.App behaviour the TUI needs.
type Controller interface {
	Status() (app.MonitorStatus, error)
	GateState() (controller.StateSnapshot, error)
	Ping(context.Context, time.Duration) (app.PingResult, error)
	Check() (app.CheckResult, error)
}

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller

	spin spinner.Model

	monitor app.MonitorStatus
	gate    controller.StateSnapshot
	gateErr error

	ping     *app.PingResult
	pingErr  error
	check    *app.CheckResult
	checkErr error

	busy      bool
	statusMsg string

	width  int
	height int

	lastUpdated time.Time
}

// New constructs a TUI model with default styles.
func New(ctrl Controller) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return &Model{
		controller: ctrl,
		spin:       sp,
		statusMsg:  "Checking monitor status…",
		busy:       true,
	}
}

// Run spins up the Bubble Tea program with sensible defaults.
func Run(ctrl Controller) error {
	m := New(ctrl)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, refreshCmd(m.controller), scheduleRefresh())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case refreshedMsg:
		m.busy = false
		m.monitor = msg.monitor
		m.gate = msg.gate
		m.gateErr = msg.gateErr
		m.lastUpdated = time.Now()
		if m.monitor.Running {
			m.statusMsg = fmt.Sprintf("Monitor running (pid %d).", m.monitor.PID)
		} else {
			m.statusMsg = "Monitor is not running."
		}

	case refreshTickMsg:
		return m, tea.Batch(refreshCmd(m.controller), scheduleRefresh())

	case pingDoneMsg:
		m.busy = false
		m.ping = msg.result
		m.pingErr = msg.err

	case checkDoneMsg:
		m.busy = false
		m.check = msg.result
		m.checkErr = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.busy = true
			return m, refreshCmd(m.controller)
		case "p":
			m.busy = true
			return m, pingCmd(m.controller)
		case "c":
			m.busy = true
			return m, checkCmd(m.controller)
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true)
	if m.monitor.Running {
		statusStyle = statusStyle.Foreground(lipgloss.Color("42"))
	} else {
		statusStyle = statusStyle.Foreground(lipgloss.Color("203"))
	}
	b.WriteString(statusStyle.Render(m.statusMsg))
	if m.busy {
		b.WriteString(" " + m.spin.View())
	}
	b.WriteByte('\n')

	b.WriteString(m.gatePanel())
	b.WriteByte('\n')

	if m.ping != nil || m.pingErr != nil {
		b.WriteString(m.pingLine())
		b.WriteByte('\n')
	}
	if m.check != nil || m.checkErr != nil {
		b.WriteString(m.checkLine())
		b.WriteByte('\n')
	}

	help := "Commands: q quit • r refresh • p ping monitor • c sample now"
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) gatePanel() string {
	panelStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	if m.gateErr != nil {
		return panelStyle.Render("Gate state unavailable.\nRun `xgate watch` to start enforcing.")
	}

	var lines []string
	if m.gate.Blocking {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("BLOCKING"))
	} else {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("ALLOWING"))
	}
	if m.gate.Connected {
		lines = append(lines, "channel: connected")
	} else {
		lines = append(lines, "channel: disconnected (fail closed)")
	}
	if last := m.gate.Last; last != nil {
		lines = append(lines, fmt.Sprintf("last decision: agent_active=%t should_block=%t", last.AgentActive, last.ShouldBlock))
		if last.Reason != "" {
			lines = append(lines, "reason: "+last.Reason)
		}
		lines = append(lines, "at: "+last.Timestamp.Format(time.RFC1123))
	} else {
		lines = append(lines, "last decision: none yet")
	}
	if m.gate.UpdatedUnix > 0 {
		lines = append(lines, "state written: "+time.Unix(m.gate.UpdatedUnix, 0).Format(time.Kitchen))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) pingLine() string {
	if m.pingErr != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(fmt.Sprintf("ping failed: %v", m.pingErr))
	}
	return fmt.Sprintf("ping: agent_active=%t should_block=%t rtt=%s",
		m.ping.Decision.AgentActive, m.ping.Decision.ShouldBlock, m.ping.RTT.Round(time.Millisecond))
}

func (m *Model) checkLine() string {
	if m.checkErr != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(fmt.Sprintf("sample failed: %v", m.checkErr))
	}
	return fmt.Sprintf("sample: agent_active=%t should_block=%t pattern=%s",
		m.check.AgentActive, m.check.ShouldBlock, m.check.Pattern)
}

type refreshedMsg struct {
	monitor app.MonitorStatus
	gate    controller.StateSnapshot
	gateErr error
}

type refreshTickMsg struct{}

type pingDoneMsg struct {
	result *app.PingResult
	err    error
}

type checkDoneMsg struct {
	result *app.CheckResult
	err    error
}

func refreshCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		var msg refreshedMsg
		st, err := ctrl.Status()
		if err == nil {
			msg.monitor = st
		}
		msg.gate, msg.gateErr = ctrl.GateState()
		return msg
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func pingCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		res, err := ctrl.Ping(ctx, 3*time.Second)
		if err != nil {
			return pingDoneMsg{err: err}
		}
		return pingDoneMsg{result: &res}
	}
}

func checkCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		res, err := ctrl.Check()
		if err != nil {
			return checkDoneMsg{err: err}
		}
		return checkDoneMsg{result: &res}
	}
}
