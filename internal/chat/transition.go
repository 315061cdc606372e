package chat

import "strings"

// NameCommandPrefix starts the relay command that sets the sender name.
const NameCommandPrefix = "/name "

// NameCommand builds the relay payload announcing name.
func NameCommand(name string) string {
	return NameCommandPrefix + name
}

// Effect is what a dispatched key asks of the multiplexer beyond the session
// mutation Dispatch already applied.
type Effect struct {
	// Send is written to the relay when non-empty.
	Send string
	// Quit ends the run loop.
	Quit bool
}

// Dispatch applies one key press to s following the screen transition table
// and returns the resulting side effect. Keys a screen does not list leave the
// session untouched. Release events are ignored.
func Dispatch(s *Session, k KeyEvent) Effect {
	if k.Kind != KeyPress {
		return Effect{}
	}
	switch s.screen {
	case ScreenLoggingIn:
		return dispatchLoggingIn(s, k)
	case ScreenMain:
		return dispatchMain(s, k)
	case ScreenComposingMessage:
		return dispatchComposing(s, k)
	case ScreenHelpMenu:
		s.setScreen(ScreenMain)
	case ScreenSetUsername:
		return dispatchSetUsername(s, k)
	case ScreenExiting:
		return dispatchExiting(s, k)
	case ScreenDisconnected:
	}
	return Effect{}
}

func dispatchMain(s *Session, k KeyEvent) Effect {
	switch {
	case k.Key == KeyEnter:
		s.clearCompose()
		s.setScreen(ScreenComposingMessage)
	case k.is('h'):
		s.setScreen(ScreenHelpMenu)
	case k.is('q'):
		s.setScreen(ScreenExiting)
	case k.is('n'):
		s.clearCompose()
		s.setScreen(ScreenSetUsername)
	case k.Key == KeyUp:
		s.Scroll(1)
	case k.Key == KeyDown:
		s.Scroll(-1)
	}
	return Effect{}
}

func dispatchComposing(s *Session, k KeyEvent) Effect {
	if k.Key == KeyEnter {
		text := s.SubmitCompose()
		s.setScreen(ScreenMain)
		return Effect{Send: text}
	}
	edit(s, k, true)
	return Effect{}
}

func dispatchSetUsername(s *Session, k KeyEvent) Effect {
	if k.Key == KeyEnter {
		name := strings.TrimSpace(s.SubmitCompose())
		s.setScreen(ScreenMain)
		if name == "" {
			return Effect{}
		}
		s.SetUsername(name)
		return Effect{Send: NameCommand(name)}
	}
	edit(s, k, true)
	return Effect{}
}

// dispatchLoggingIn is SetUsername without a way out: Esc and an empty
// Enter do nothing.
func dispatchLoggingIn(s *Session, k KeyEvent) Effect {
	if k.Key == KeyEnter {
		name := strings.TrimSpace(s.compose)
		if name == "" {
			return Effect{}
		}
		s.clearCompose()
		s.SetUsername(name)
		s.setScreen(ScreenMain)
		return Effect{Send: NameCommand(name)}
	}
	edit(s, k, false)
	return Effect{}
}

func dispatchExiting(s *Session, k KeyEvent) Effect {
	switch {
	case k.is('y'):
		return Effect{Quit: true}
	case k.is('n'), k.is('q'):
		s.setScreen(ScreenMain)
	}
	return Effect{}
}

// edit applies the shared compose-buffer editing keys. Esc discards the
// buffer and returns to Main when cancellable.
func edit(s *Session, k KeyEvent, cancellable bool) {
	switch {
	case k.Key == KeyBackspace:
		s.deleteLastCompose()
	case k.Key == KeyEsc:
		if cancellable {
			s.clearCompose()
			s.setScreen(ScreenMain)
		}
	case k.printable():
		s.appendCompose(k.Rune)
	}
}
