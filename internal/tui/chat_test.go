package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	reply string
	err   error
	got   []string
}

func (f *fakeSender) Chat(ctx context.Context, sessionID, message string, clicked bool) (string, error) {
	f.got = append(f.got, sessionID+":"+message)
	return f.reply, f.err
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestChatSendAndReply(t *testing.T) {
	fs := &fakeSender{reply: "**hola**"}
	m := New(context.Background(), fs, "session_1_abc", "Bot")
	m.style = "notty"

	m = typeText(t, m, "hi there")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Equal(t, "", m.input.Value())
	require.Len(t, m.history, 1)
	assert.Equal(t, turn{who: fromUser, text: "hi there"}, m.history[0])

	// A second enter while waiting is ignored.
	m = typeText(t, m, "again")
	next, cmd2 := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Nil(t, cmd2)

	msg := cmd()
	assert.Equal(t, []string{"session_1_abc:hi there"}, fs.got)
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.waiting)
	require.Len(t, m.history, 2)
	assert.Equal(t, fromBot, m.history[1].who)
	assert.Contains(t, m.vp.View(), "hola")
	assert.Contains(t, m.View(), "session_1_abc")
}

func TestChatShowsErrors(t *testing.T) {
	m := New(context.Background(), &fakeSender{err: errors.New("Error: 503")}, "s", "Bot")
	next, _ := m.Update(replyMsg{err: errors.New("Error: 503")})
	m = next.(Model)
	require.Len(t, m.history, 1)
	assert.Equal(t, turn{who: fromError, text: "Error: 503"}, m.history[0])
	assert.Equal(t, "failed", m.status)

	assert.Equal(t, "Error: dial tcp: refused", errorText(errors.New("dial tcp: refused")))
}

func TestChatIgnoresBlankInput(t *testing.T) {
	m := New(context.Background(), &fakeSender{}, "s", "Bot")
	m = typeText(t, m, "   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, next.(Model).history)
}

func TestChatQuitKeys(t *testing.T) {
	m := New(context.Background(), &fakeSender{}, "s", "Bot")
	for _, k := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestChatResize(t *testing.T) {
	m := New(context.Background(), &fakeSender{}, "s", "Bot")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.Equal(t, 116, m.vp.Width)
	assert.Equal(t, 35, m.vp.Height)
	assert.Equal(t, 116, m.input.Width)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Title\n\nsome *text*", "notty", 40)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")

	_, err = RenderMarkdown("x", "no-such-style", 40)
	assert.Error(t, err)
}
