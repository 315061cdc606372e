package chat

// Screen is the active modal UI state.
type Screen int

const (
	ScreenLoggingIn Screen = iota
	ScreenMain
	ScreenComposingMessage
	ScreenHelpMenu
	ScreenSetUsername
	ScreenExiting
	ScreenDisconnected
)

func (s Screen) String() string {
	switch s {
	case ScreenLoggingIn:
		return "logging-in"
	case ScreenMain:
		return "main"
	case ScreenComposingMessage:
		return "composing"
	case ScreenHelpMenu:
		return "help"
	case ScreenSetUsername:
		return "set-username"
	case ScreenExiting:
		return "exiting"
	case ScreenDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Composing reports whether the screen edits the compose buffer.
func (s Screen) Composing() bool {
	switch s {
	case ScreenLoggingIn, ScreenComposingMessage, ScreenSetUsername:
		return true
	}
	return false
}
