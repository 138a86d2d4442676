package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/gfix/gfix"
	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/render"
	"github.com/sokinpui/gfix/internal/term"
	"github.com/sokinpui/gfix/model"
)

// --- Styles ---
var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type pickRequestMsg struct {
	placeholder string
	items       []string
	reply       chan<- int
}

type noteMsg term.Notification

type doneMsg struct{ err error }

// --- Model ---
type state int

const (
	stateStarting state = iota
	statePicking
	stateRunning
	stateResult
)

// Model drives one gfix invocation in the terminal.
type Model struct {
	app    *gfix.App
	ed     *term.Editor
	mode   *model.Mode
	events chan tea.Msg

	state    state
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	pick     pickRequestMsg
	cursor   int
	notes    []term.Notification
	err      error
}

// New creates the model. When mode is nil the user picks an operation.
func New(app *gfix.App, ed *term.Editor, mode *model.Mode) Model {
	events := make(chan tea.Msg, 16)
	ed.Picker = func(placeholder string, items []string) (int, error) {
		reply := make(chan int, 1)
		events <- pickRequestMsg{placeholder: placeholder, items: items, reply: reply}
		if idx := <-reply; idx >= 0 {
			return idx, nil
		}
		return 0, editor.ErrCancelled
	}
	ed.Notify = func(n term.Notification) { events <- noteMsg(n) }

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		app:      app,
		ed:       ed,
		mode:     mode,
		events:   events,
		spinner:  s,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// Err returns the error of the last operation, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), m.runApp())
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m Model) runApp() tea.Cmd {
	app, ed, mode := m.app, m.ed, m.mode
	return func() tea.Msg {
		ctx := context.Background()
		if mode != nil {
			return doneMsg{app.Execute(ctx, ed, *mode)}
		}
		return doneMsg{app.Start(ctx, ed)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1)
		if m.state == stateResult {
			m.viewport.SetContent(m.result())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case pickRequestMsg:
		m.state = statePicking
		m.pick = msg
		m.cursor = 0
		return m, m.listen()

	case noteMsg:
		m.notes = append(m.notes, term.Notification(msg))
		if m.state == stateResult {
			m.viewport.SetContent(m.result())
		}
		return m, m.listen()

	case doneMsg:
		m.err = msg.err
		m.state = stateResult
		m.viewport.SetContent(m.result())
		m.viewport.GotoTop()
		return m, nil

	default:
		var cmd tea.Cmd
		if m.state == stateStarting || m.state == stateRunning {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		if m.state == statePicking {
			m.pick.reply <- -1
		}
		return m, tea.Quit
	}

	switch m.state {
	case statePicking:
		switch key {
		case "up", "k":
			m.cursor = (m.cursor + len(m.pick.items) - 1) % len(m.pick.items)
		case "down", "j":
			m.cursor = (m.cursor + 1) % len(m.pick.items)
		case "enter":
			m.pick.reply <- m.cursor
			m.state = stateRunning
			return m, m.spinner.Tick
		case "esc", "q":
			m.pick.reply <- -1
			m.state = stateRunning
			return m, m.spinner.Tick
		default:
			if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(m.pick.items) {
				m.cursor = int(key[0] - '1')
			}
		}
		return m, nil

	case stateResult:
		switch key {
		case "q", "esc", "enter":
			return m, tea.Quit
		case "f":
			fix, ok := fixAction(m.ed.Panels())
			if !ok {
				return m, nil
			}
			m.state = stateRunning
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
				fix()
				return doneMsg{}
			})
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case statePicking:
		return m.renderPicker()
	case stateStarting, stateRunning:
		status := "Working..."
		if n := len(m.notes); n > 0 {
			status = m.notes[n-1].Text
		}
		return fmt.Sprintf("%s %s", m.spinner.View(), status)
	case stateResult:
		return m.viewport.View() + "\n" + faintStyle.Render(m.footer())
	default:
		return ""
	}
}

func (m Model) renderPicker() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.pick.placeholder))
	b.WriteString("\n\n")
	for i, item := range m.pick.items {
		line := fmt.Sprintf("%d. %s", i+1, item)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("enter: choose  esc: cancel"))
	return b.String()
}

func (m Model) footer() string {
	if _, ok := fixAction(m.ed.Panels()); ok {
		return "f: fix code  q: quit"
	}
	return "q: quit"
}

func (m Model) result() string {
	return Result(m.ed.Notifications(), m.ed.Panels(), m.ed.Documents(), m.width)
}

// Result renders the outcome of an invocation for the terminal.
func Result(notes []term.Notification, panels []term.Panel, docs []term.Document, width int) string {
	var b strings.Builder
	for _, n := range notes {
		if n.Level == term.LevelError {
			b.WriteString(errorStyle.Render(n.Text))
		} else {
			b.WriteString(successStyle.Render(n.Text))
		}
		b.WriteString("\n")
	}
	for _, p := range panels {
		b.WriteString("\n")
		b.WriteString(render.Terminal(render.Markdown(p.Panel), width))
	}
	for _, d := range docs {
		b.WriteString("\n")
		if d.Kind == editor.Markdown {
			b.WriteString(render.Terminal(d.Content, width))
		} else {
			b.WriteString(d.Content)
		}
	}
	return b.String()
}

// fixAction returns the most recent panel action that asks for a fix.
func fixAction(panels []term.Panel) (func(), bool) {
	for i := len(panels) - 1; i >= 0; i-- {
		p := panels[i]
		if p.OnMessage == nil {
			continue
		}
		for _, a := range p.Actions {
			if a.Message.Command == editor.CommandFixCode {
				msg := a.Message
				return func() { p.OnMessage(msg) }, true
			}
		}
	}
	return nil, false
}
