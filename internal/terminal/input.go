package terminal

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"tuimessenger/internal/chat"
)

const inputBuffer = 32

type eventSource interface {
	PollEvent() tcell.Event
}

// Events starts the input feeder. Ctrl-C never reaches the channel; it
// calls interrupt instead, from any screen. The channel closes once the
// screen is finalized.
func (t *Terminal) Events(ctx context.Context, interrupt func()) <-chan chat.InputEvent {
	return feed(ctx, t.screen, interrupt)
}

func feed(ctx context.Context, src eventSource, interrupt func()) <-chan chat.InputEvent {
	out := make(chan chat.InputEvent, inputBuffer)
	go func() {
		for {
			ev := src.PollEvent()
			if ev == nil {
				close(out)
				return
			}
			if k, ok := ev.(*tcell.EventKey); ok && k.Key() == tcell.KeyCtrlC {
				if interrupt != nil {
					interrupt()
				}
				continue
			}
			in, ok := convertEvent(ev)
			if !ok {
				continue
			}
			select {
			case out <- in:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func convertEvent(ev tcell.Event) (chat.InputEvent, bool) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return chat.KeyInput(convertKey(e)), true
	case *tcell.EventResize:
		w, h := e.Size()
		return chat.ResizeInput(w, h), true
	default:
		return chat.InputEvent{}, false
	}
}

// tcell reports presses only, so every key becomes a chat.KeyPress.
func convertKey(e *tcell.EventKey) chat.KeyEvent {
	switch e.Key() {
	case tcell.KeyRune:
		return chat.Char(e.Rune())
	case tcell.KeyEnter, tcell.KeyLF:
		return chat.Press(chat.KeyEnter)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return chat.Press(chat.KeyBackspace)
	case tcell.KeyEscape:
		return chat.Press(chat.KeyEsc)
	case tcell.KeyUp:
		return chat.Press(chat.KeyUp)
	case tcell.KeyDown:
		return chat.Press(chat.KeyDown)
	default:
		return chat.Press(chat.KeyNone)
	}
}
