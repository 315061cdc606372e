package chat

import "unicode"

// Key identifies the keys the state machine distinguishes. Everything else
// arrives as KeyNone and is a no-op on every screen.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyEsc
	KeyUp
	KeyDown
)

// KeyKind separates presses from releases. Only presses are dispatched.
type KeyKind int

const (
	KeyPress KeyKind = iota
	KeyRelease
)

type KeyEvent struct {
	Key  Key
	Rune rune
	Kind KeyKind
}

// Press builds a key-press event for a non-character key.
func Press(k Key) KeyEvent {
	return KeyEvent{Key: k, Kind: KeyPress}
}

// Char builds a key-press event for a typed character.
func Char(r rune) KeyEvent {
	return KeyEvent{Key: KeyRune, Rune: r, Kind: KeyPress}
}

func (k KeyEvent) is(r rune) bool {
	return k.Key == KeyRune && k.Rune == r
}

func (k KeyEvent) printable() bool {
	return k.Key == KeyRune && unicode.IsPrint(k.Rune)
}

type EventType int

const (
	EventKey EventType = iota + 1
	EventResize
)

// InputEvent is one item from the terminal input source.
type InputEvent struct {
	Type   EventType
	Key    KeyEvent
	Width  int
	Height int
}

func KeyInput(k KeyEvent) InputEvent {
	return InputEvent{Type: EventKey, Key: k}
}

func ResizeInput(width, height int) InputEvent {
	return InputEvent{Type: EventResize, Width: width, Height: height}
}
