package chat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession(ScreenMain)
	require.Equal(t, ScreenMain, s.Screen())
	require.Empty(t, s.Messages())
	require.Empty(t, s.Compose())
	require.Empty(t, s.Username())
	require.Zero(t, s.MessageScroll())
	require.Zero(t, s.ComposeScroll())
}

func TestAppendKeepsArrivalOrder(t *testing.T) {
	s := NewSession(ScreenMain)
	want := []Message{
		ChatMessage("bob", "one"),
		SystemMessage("alice joined"),
		ChatMessage("alice", "two"),
	}
	for _, m := range want {
		s.Append(m)
	}
	require.Equal(t, want, s.Messages())
}

func TestSubmitCompose(t *testing.T) {
	s := NewSession(ScreenComposingMessage)
	require.Empty(t, s.SubmitCompose())

	s.appendCompose('o')
	s.appendCompose('k')
	require.Equal(t, "ok", s.SubmitCompose())
	require.Empty(t, s.Compose())
}

func TestScrollSaturates(t *testing.T) {
	s := NewSession(ScreenMain)
	s.Scroll(-5)
	require.Zero(t, s.MessageScroll())

	s.Scroll(3)
	s.Scroll(-1)
	require.Equal(t, 2, s.MessageScroll())

	s.Scroll(math.MaxInt)
	require.Equal(t, math.MaxInt, s.MessageScroll())
	s.Scroll(1)
	require.Equal(t, math.MaxInt, s.MessageScroll())
}

func TestMessageIsOwn(t *testing.T) {
	require.True(t, ChatMessage("alice", "hi").IsOwn("alice"))
	require.False(t, ChatMessage("bob", "hi").IsOwn("alice"))
	require.False(t, ChatMessage("", "hi").IsOwn(""))
	require.False(t, SystemMessage("alice joined").IsOwn("alice"))
}

func TestScreenComposing(t *testing.T) {
	for _, s := range []Screen{ScreenLoggingIn, ScreenComposingMessage, ScreenSetUsername} {
		require.True(t, s.Composing(), s.String())
	}
	for _, s := range []Screen{ScreenMain, ScreenHelpMenu, ScreenExiting, ScreenDisconnected} {
		require.False(t, s.Composing(), s.String())
	}
}
