// Package tui is a terminal chat client for the configured webhook.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lipglossv2 "github.com/charmbracelet/lipgloss/v2"
)

// Sender delivers one user message and returns the bot reply.
type Sender interface {
	Chat(ctx context.Context, sessionID, message string, clicked bool) (string, error)
}

type speaker int

const (
	fromUser speaker = iota
	fromBot
	fromError
)

type turn struct {
	who  speaker
	text string
}

// replyMsg carries the outcome of a send back to Update.
type replyMsg struct {
	text string
	err  error
	dur  time.Duration
}

var (
	userLabel  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusBar  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
)

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	send    Sender
	session string
	title   string
	style   string

	input   textinput.Model
	vp      viewport.Model
	frame   lipglossv2.Style
	history []turn
	waiting bool
	status  string
	width   int
	height  int
}

// New builds a chat model bound to one session.
func New(ctx context.Context, send Sender, sessionID, title string) Model {
	in := textinput.New()
	in.Placeholder = "Escribe tu mensaje..."
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	m := Model{
		ctx:     ctx,
		send:    send,
		session: sessionID,
		title:   title,
		style:   DefaultStyle,
		input:   in,
		status:  "ready",
	}
	m.resize(80, 24)
	return m
}

// Run starts the program in the alternate screen and blocks until the user quits.
func Run(ctx context.Context, send Sender, sessionID, title string) error {
	p := tea.NewProgram(New(ctx, send, sessionID, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *Model) resize(w, h int) {
	if w <= 0 || h <= 0 {
		w, h = 80, 24
	}
	m.width, m.height = w, h
	m.frame = lipglossv2.NewStyle().
		Border(lipglossv2.RoundedBorder()).
		BorderForeground(lipglossv2.Color("63")).
		Width(w - 2)

	// title + frame borders + input + status
	vpH := h - 1 - 2 - 1 - 1
	if vpH < 3 {
		vpH = 3
	}
	vpW := w - 4
	if vpW < 20 {
		vpW = 20
	}
	if m.vp.Width == 0 {
		m.vp = viewport.New(vpW, vpH)
	} else {
		m.vp.Width = vpW
		m.vp.Height = vpH
	}
	m.input.Width = w - 4
	m.refresh()
}

func (m *Model) refresh() {
	var b strings.Builder
	for _, t := range m.history {
		switch t.who {
		case fromUser:
			b.WriteString(userLabel.Render("Tú") + "\n" + t.text + "\n\n")
		case fromBot:
			out, err := RenderMarkdown(t.text, m.style, m.vp.Width)
			if err != nil {
				out = t.text + "\n"
			}
			b.WriteString(botLabel.Render(m.title) + "\n" + strings.TrimRight(out, "\n") + "\n\n")
		case fromError:
			b.WriteString(errorStyle.Render(t.text) + "\n\n")
		}
	}
	if m.waiting {
		b.WriteString(botLabel.Render(m.title) + " …\n")
	}
	m.vp.SetContent(b.String())
	m.vp.GotoBottom()
}

func (m Model) sendCmd(text string) tea.Cmd {
	ctx, send, session := m.ctx, m.send, m.session
	return func() tea.Msg {
		start := time.Now()
		reply, err := send.Chat(ctx, session, text, false)
		return replyMsg{text: reply, err: err, dur: time.Since(start)}
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch x := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(x.Width, x.Height)
		return m, nil
	case tea.KeyMsg:
		switch x.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.history = append(m.history, turn{who: fromUser, text: text})
			m.waiting = true
			m.status = "sending…"
			m.refresh()
			return m, m.sendCmd(text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case replyMsg:
		m.waiting = false
		switch {
		case x.err != nil:
			m.history = append(m.history, turn{who: fromError, text: errorText(x.err)})
			m.status = "failed"
		case x.text != "":
			m.history = append(m.history, turn{who: fromBot, text: x.text})
			m.status = fmt.Sprintf("replied in %s", x.dur.Round(time.Millisecond))
		default:
			m.status = "empty reply"
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// errorText mirrors what the widget shows for a failed send.
func errorText(err error) string {
	s := err.Error()
	if strings.HasPrefix(s, "Error: ") {
		return s
	}
	return "Error: " + s
}

func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Render(m.title)
	left := " " + m.session
	right := m.status + " • esc to quit "
	space := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		space = 1
	}
	footer := statusBar.Render(left + strings.Repeat(" ", space) + right)
	return title + "\n" + m.frame.Render(m.vp.View()) + "\n" + m.input.View() + "\n" + footer
}
