package chat

import (
	"math"
	"unicode/utf8"
)

// Session is the whole client state. It has exactly one mutator, the
// Multiplexer; renderers only read it.
type Session struct {
	messages      []Message
	compose       string
	username      string
	messageScroll int
	composeScroll int
	screen        Screen
}

// NewSession returns an empty session showing start.
func NewSession(start Screen) *Session {
	return &Session{screen: start}
}

func (s *Session) Screen() Screen { return s.screen }

// Messages returns the history in arrival order. Callers must not modify it.
func (s *Session) Messages() []Message { return s.messages }

func (s *Session) Compose() string { return s.compose }

// Username returns the configured name, empty until one is set.
func (s *Session) Username() string { return s.username }

// MessageScroll is the number of lines scrolled up from the newest line.
func (s *Session) MessageScroll() int { return s.messageScroll }

// ComposeScroll is the number of wrapped compose lines scrolled up from the
// last one. No key moves it while editing and every edit resets it, so the
// compose box always follows the tail of the buffer.
func (s *Session) ComposeScroll() int { return s.composeScroll }

// Append adds m to the end of the history.
func (s *Session) Append(m Message) {
	s.messages = append(s.messages, m)
}

// SubmitCompose returns the compose buffer and clears it.
func (s *Session) SubmitCompose() string {
	out := s.compose
	s.clearCompose()
	return out
}

// Scroll moves the message view by delta lines. The offset never goes below
// zero; the upper bound depends on the viewport and is left to the renderer.
func (s *Session) Scroll(delta int) {
	switch {
	case delta > 0 && s.messageScroll > math.MaxInt-delta:
		s.messageScroll = math.MaxInt
	case s.messageScroll+delta < 0:
		s.messageScroll = 0
	default:
		s.messageScroll += delta
	}
}

// SetUsername records the name used to tell own messages apart.
func (s *Session) SetUsername(name string) {
	s.username = name
}

func (s *Session) scrollToNewest() {
	s.messageScroll = 0
}

func (s *Session) setScreen(next Screen) {
	s.screen = next
}

func (s *Session) clearCompose() {
	s.compose = ""
	s.composeScroll = 0
}

func (s *Session) appendCompose(r rune) {
	s.compose += string(r)
	s.composeScroll = 0
}

// deleteLastCompose drops the last rune, the inverse of appendCompose.
func (s *Session) deleteLastCompose() {
	if s.compose == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(s.compose)
	s.compose = s.compose[:len(s.compose)-size]
	s.composeScroll = 0
}

// mark captures what a failed outbound write has to roll back.
type mark struct {
	screen   Screen
	compose  string
	username string
}

func (s *Session) mark() mark {
	return mark{screen: s.screen, compose: s.compose, username: s.username}
}

func (s *Session) restore(m mark) {
	s.screen = m.screen
	s.compose = m.compose
	s.username = m.username
	s.composeScroll = 0
}
