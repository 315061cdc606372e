// Package terminal owns the tcell screen: the scoped terminal resource, the
// input feeder goroutine, and the renderer that draws a chat.Session.
package terminal

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
)

var newScreen = tcell.NewScreen

// Terminal holds the screen in raw mode until Close. Close must run on
// every exit path, including panics, or the user's shell is left unusable.
type Terminal struct {
	screen    tcell.Screen
	closeOnce sync.Once
}

// Open initializes the controlling terminal.
func Open() (*Terminal, error) {
	s, err := newScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return OpenScreen(s)
}

// OpenScreen takes ownership of an uninitialized screen.
func OpenScreen(s tcell.Screen) (*Terminal, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	s.HideCursor()
	s.Clear()
	return &Terminal{screen: s}, nil
}

func (t *Terminal) Screen() tcell.Screen { return t.screen }

// Renderer returns a renderer drawing to this terminal.
func (t *Terminal) Renderer() *Renderer { return NewRenderer(t.screen) }

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() {
	t.closeOnce.Do(t.screen.Fini)
}
