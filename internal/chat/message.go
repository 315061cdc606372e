// Package chat holds the client session: the message history, the compose
// buffer, the screen state machine and the event multiplexer that serializes
// relay traffic and terminal input into session mutations.
package chat

// MessageKind tags a Message as a chat line or a relay notice.
type MessageKind int

const (
	KindChat MessageKind = iota
	KindSystem
)

func (k MessageKind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message is one entry of the history. Sender is empty for system messages.
type Message struct {
	Kind    MessageKind
	Sender  string
	Content string
}

func ChatMessage(sender, content string) Message {
	return Message{Kind: KindChat, Sender: sender, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Kind: KindSystem, Content: content}
}

// IsOwn reports whether m was sent under username.
func (m Message) IsOwn(username string) bool {
	return m.Kind == KindChat && username != "" && m.Sender == username
}
