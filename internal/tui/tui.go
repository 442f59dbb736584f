package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/mcpchat/internal/agent"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/shell"
)

type outcomeMsg struct {
	outcome shell.Outcome
}

func waitOutcomeCmd(outcomes <-chan shell.Outcome) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: <-outcomes}
	}
}

type activityMsg struct {
	event agent.Event
	done  bool
}

func waitActivityCmd(activity <-chan agent.Event) tea.Cmd {
	if activity == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-activity
		if !ok {
			return activityMsg{done: true}
		}
		return activityMsg{event: event}
	}
}

type entryKind int

const (
	entryUser entryKind = iota
	entryTool
	entryAnswer
	entryWarning
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type Model struct {
	logger   logger.Logger
	session  *shell.Session
	outcomes chan shell.Outcome
	activity <-chan agent.Event
	title    string

	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model

	entries    []entry
	processing bool
}

type Option func(*Model)

// WithActivity shows tool calls as they happen.
func WithActivity(activity <-chan agent.Event) Option {
	return func(m *Model) { m.activity = activity }
}

// WithTitle sets the text shown in the footer next to the key hints.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

func New(log logger.Logger, session *shell.Session, opts ...Option) Model {
	m := Model{
		logger:   log,
		session:  session,
		outcomes: make(chan shell.Outcome, 1),
	}
	for _, opt := range opts {
		opt(&m)
	}
	vp := viewport.New(0, 0)
	vp.KeyMap.Up.SetKeys("up")
	vp.KeyMap.Down.SetKeys("down")
	vp.KeyMap.PageUp.SetEnabled(false)
	vp.KeyMap.PageDown.SetEnabled(false)
	vp.KeyMap.HalfPageUp.SetEnabled(false)
	vp.KeyMap.HalfPageDown.SetEnabled(false)
	m.viewport = vp
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "ask about math or the weather"
	ti.Focus()
	ti.CharLimit = 1024
	m.textinput = ti
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m.spinner = sp
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitActivityCmd(m.activity))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outcomeMsg:
		m.processing = false
		m.textinput.Focus()
		m.push(outcomeEntry(msg.outcome))
		return m, textinput.Blink
	case activityMsg:
		if msg.done {
			m.activity = nil
			return m, nil
		}
		if e, ok := msg.event.(*agent.ToolCallEvent); ok {
			m.push(entry{kind: entryTool, text: e.Name})
		}
		return m, waitActivityCmd(m.activity)
	case spinner.TickMsg:
		if !m.processing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.processing {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.refresh()
		m.textinput.Width = msg.Width - 3
		return m, nil
	}
	var cmd1, cmd2 tea.Cmd
	m.viewport, cmd1 = m.viewport.Update(msg)
	m.textinput, cmd2 = m.textinput.Update(msg)
	return m, tea.Batch(cmd1, cmd2)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	input := m.textinput.Value()
	outcomes := m.outcomes
	err := m.session.Submit(context.Background(), input, func(o shell.Outcome) { outcomes <- o })
	if err != nil {
		m.logger.Error("submit rejected: %v", err)
		return m, nil
	}
	m.textinput.Reset()
	if strings.TrimSpace(input) == "" {
		return m, waitOutcomeCmd(outcomes)
	}
	m.push(entry{kind: entryUser, text: strings.TrimSpace(input)})
	m.processing = true
	m.textinput.Blur()
	return m, tea.Batch(waitOutcomeCmd(outcomes), m.spinner.Tick)
}

func (m *Model) push(e entry) {
	m.entries = append(m.entries, e)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func outcomeEntry(o shell.Outcome) entry {
	switch o.Kind {
	case shell.KindWarning:
		return entry{kind: entryWarning, text: o.Text}
	case shell.KindError:
		return entry{kind: entryError, text: o.Text}
	default:
		return entry{kind: entryAnswer, text: o.Text}
	}
}

func (m Model) View() string {
	var s string
	s += m.viewport.View()
	s += "\n\n" + m.textinput.View()
	s += "\n\n" + m.renderFooter()
	return s
}

func (m Model) renderContent() string {
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			parts = append(parts, color.New(color.Faint).Sprint(wrap("› "+e.text, "", m.viewport.Width)))
		case entryTool:
			parts = append(parts, color.New(color.FgYellow).Sprint("●")+color.New(color.Bold).Sprintf(" %s", e.text))
		case entryAnswer:
			parts = append(parts, renderMarkdown(e.text, m.viewport.Width))
		case entryWarning:
			parts = append(parts, warningStyle.Render(wrap(e.text, "", m.viewport.Width)))
		case entryError:
			parts = append(parts, errorStyle.Render(wrap(e.text, "", m.viewport.Width)))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderFooter() string {
	meta := "ctrl+c to quit."
	if m.title != "" {
		meta += fmt.Sprintf(" (%s)", m.title)
	}
	if m.processing {
		return m.spinner.View() + color.New(color.Faint).Sprint(" working...")
	}
	return color.New(color.Faint).Sprint(meta)
}
