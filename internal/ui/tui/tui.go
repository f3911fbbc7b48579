// Package tui is the interactive agenda console built on bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/agenda/internal/runtime"
	"github.com/felixgeelhaar/agenda/internal/ui"
)

// TUI forwards UI updates into a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) UpdatePending(count int) {
	t.program.Send(PendingMsg(count))
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

// Caller runs one operation for a session.
type Caller interface {
	Call(ctx context.Context, sessionID, operation string, args map[string]any) (runtime.Response, error)
	Registry() *runtime.Registry
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	inputEchoStyle = lipgloss.NewStyle().
			Bold(true)
)

// chrome is the number of rows used by everything except the viewport.
const chrome = 5

type Model struct {
	Title     string
	SessionID string
	Status    string
	Pending   int
	Log       []string
	Input     textinput.Model
	Viewport  viewport.Model
	Quitting  bool
	Ready     bool
	Width     int
	Height    int

	caller Caller
	ctx    context.Context
	// awaiting is set when the last response queued a write.
	awaiting bool
	busy     bool
}

type LogMsg string
type StatusMsg string
type PendingMsg int

// ResultMsg carries the outcome of one submitted line.
type ResultMsg struct {
	Line     string
	Response runtime.Response
	Err      error
}

func NewModel(ctx context.Context, title, sessionID string, caller Caller) Model {
	in := textinput.New()
	in.Placeholder = `get_events  |  create_list name="Groceries"  |  yes`
	in.Prompt = "› "
	in.Focus()
	return Model{
		Title:     title,
		SessionID: sessionID,
		Status:    "Ready",
		Input:     in,
		caller:    caller,
		ctx:       ctx,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
		// Keys belong to the input; the viewport scrolls with the mouse.
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Input.Width = msg.Width - 4
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.Viewport.SetContent(strings.Join(m.Log, "\n"))
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - chrome
		}

	case LogMsg:
		m.appendLog(string(msg))

	case StatusMsg:
		m.Status = string(msg)

	case PendingMsg:
		m.Pending = int(msg)

	case ResultMsg:
		m.busy = false
		if msg.Err != nil {
			m.Status = "Error"
			m.appendLog(errorStyle.Render(msg.Err.Error()))
		} else {
			m.awaiting = msg.Response.Pending()
			if m.awaiting {
				m.Status = "Awaiting confirmation"
			} else {
				m.Status = "Ready"
			}
			m.appendLog(msg.Response.Text)
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit parses the input line and returns the command that runs it.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.Input.Value())
	if line == "" || m.busy {
		return m, nil
	}
	m.Input.SetValue("")
	m.appendLog(inputEchoStyle.Render("› " + line))

	switch line {
	case "quit", "exit":
		m.Quitting = true
		return m, tea.Quit
	}

	parsed, err := ui.ParseLine(line, m.awaiting || m.Pending > 0, m.caller.Registry())
	if err != nil {
		m.appendLog(errorStyle.Render(err.Error()))
		return m, nil
	}

	m.busy = true
	m.Status = "Running " + parsed.Operation
	caller, ctx, session := m.caller, m.ctx, m.SessionID
	return m, func() tea.Msg {
		resp, err := caller.Call(ctx, session, parsed.Operation, parsed.Args)
		return ResultMsg{Line: line, Response: resp, Err: err}
	}
}

func (m *Model) appendLog(line string) {
	m.Log = append(m.Log, line)
	if m.Ready {
		m.Viewport.SetContent(strings.Join(m.Log, "\n"))
		m.Viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" Status: %s ", m.Status))
	session := fmt.Sprintf(" Session: %s ", m.SessionID)
	pending := ""
	if m.Pending > 0 {
		pending = pendingStyle.Render(fmt.Sprintf(" Pending: %d ", m.Pending))
	}

	view := fmt.Sprintf("%s%s%s%s\n\n%s\n\n%s",
		header, status, session, pending,
		m.Viewport.View(),
		m.Input.View())

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}

	return view
}
