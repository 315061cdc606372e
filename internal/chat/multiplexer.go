package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrInputClosed is returned by Run when the terminal input source ends
// while the loop is still running.
var ErrInputClosed = errors.New("chat: input source closed")

// RelayEvent is one item from the relay reader: a decoded message, the
// name the relay currently knows this client by, or the error that ended
// the connection.
type RelayEvent struct {
	Message  Message
	Identity string
	Err      error
}

// Sender is the outbound half of the relay connection.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Renderer draws the session. It is called synchronously after every state
// change and must not mutate the session.
type Renderer interface {
	Render(s *Session) error
}

type Option func(*Multiplexer)

func WithLogger(l *slog.Logger) Option {
	return func(m *Multiplexer) {
		if l != nil {
			m.logger = l
		}
	}
}

// Multiplexer is the dispatch task. It waits on the relay reader and the
// terminal input source, handles one ready item per iteration, and redraws
// once the resulting mutation is complete.
type Multiplexer struct {
	session  *Session
	relay    Sender
	inbound  <-chan RelayEvent
	input    <-chan InputEvent
	renderer Renderer
	logger   *slog.Logger

	connected bool
}

func NewMultiplexer(s *Session, relay Sender, inbound <-chan RelayEvent, input <-chan InputEvent, r Renderer, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		session:   s,
		relay:     relay,
		inbound:   inbound,
		input:     input,
		renderer:  r,
		logger:    slog.New(slog.DiscardHandler),
		connected: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connected reports whether the relay is still usable.
func (m *Multiplexer) Connected() bool { return m.connected }

// Run loops until the user confirms exit (nil), ctx is cancelled
// (ctx.Err()), the input source closes, or rendering fails.
func (m *Multiplexer) Run(ctx context.Context) error {
	if err := m.draw(); err != nil {
		return err
	}
	for {
		var redraw bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.inbound:
			if !ok {
				ev = RelayEvent{Err: io.EOF}
			}
			redraw = m.handleRelay(ev)
		case ev, ok := <-m.input:
			if !ok {
				return ErrInputClosed
			}
			var quit bool
			redraw, quit = m.handleInput(ctx, ev)
			if quit {
				m.logger.Info("exit confirmed")
				return nil
			}
		}
		if redraw {
			if err := m.draw(); err != nil {
				return err
			}
		}
	}
}

func (m *Multiplexer) handleRelay(ev RelayEvent) bool {
	if ev.Err != nil {
		m.disconnect(ev.Err)
		return true
	}
	// The relay has the final say on names: a rejected /name is answered
	// with the name still in use, which undoes the local SetUsername.
	if ev.Identity != "" {
		if ev.Identity == m.session.Username() {
			return false
		}
		m.logger.Info("username assigned by relay", "from", m.session.Username(), "to", ev.Identity)
		m.session.SetUsername(ev.Identity)
		return true
	}
	m.session.Append(ev.Message)
	m.session.scrollToNewest()
	return true
}

// disconnect is one-way: the nil channel is never ready again and no further
// writes are attempted.
func (m *Multiplexer) disconnect(cause error) {
	if errors.Is(cause, io.EOF) {
		m.logger.Info("relay closed")
	} else {
		m.logger.Warn("relay read failed", "err", cause)
	}
	m.connected = false
	m.inbound = nil
	m.session.clearCompose()
	m.session.setScreen(ScreenDisconnected)
}

func (m *Multiplexer) handleInput(ctx context.Context, ev InputEvent) (redraw, quit bool) {
	switch ev.Type {
	case EventResize:
		return true, false
	case EventKey:
	default:
		return false, false
	}
	if ev.Key.Kind != KeyPress {
		return false, false
	}

	before := m.session.mark()
	eff := Dispatch(m.session, ev.Key)
	if eff.Quit {
		return false, true
	}
	if eff.Send != "" {
		m.send(ctx, eff.Send, before)
	}
	return true, false
}

// send writes text before the loop waits again. On failure the transition
// that produced it is rolled back so the user keeps the unsent text.
func (m *Multiplexer) send(ctx context.Context, text string, before mark) {
	if !m.connected {
		m.logger.Debug("dropping outbound payload while disconnected", "bytes", len(text))
		return
	}
	if err := m.relay.Send(ctx, text); err != nil {
		m.logger.Error("relay write failed", "err", err, "screen", before.screen.String(), "bytes", len(text))
		m.session.restore(before)
		m.session.Append(SystemMessage(fmt.Sprintf("send failed: %v", err)))
	}
}

func (m *Multiplexer) draw() error {
	if err := m.renderer.Render(m.session); err != nil {
		return fmt.Errorf("render %s: %w", m.session.screen, err)
	}
	return nil
}
