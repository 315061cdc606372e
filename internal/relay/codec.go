package relay

import (
	"encoding/json"
	"strings"

	"tuimessenger/internal/chat"
)

const (
	TypeChat   = "chat"
	TypeSystem = "system"
	// TypeIdentity tells a client the name the relay knows it by. It is sent
	// on connect and after every /name attempt, accepted or not.
	TypeIdentity = "identity"
)

// Envelope is the JSON form of a frame sent by the relay.
type Envelope struct {
	Type    string `json:"type"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Encode renders m as a relay envelope.
func Encode(m chat.Message) ([]byte, error) {
	env := Envelope{Type: TypeSystem, Content: m.Content}
	if m.Kind == chat.KindChat {
		env.Type = TypeChat
		env.Sender = m.Sender
	}
	return json.Marshal(env)
}

// EncodeIdentity renders the identity frame for name.
func EncodeIdentity(name string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeIdentity, Name: name})
}

// DecodeEvent turns an inbound payload into a relay event: an identity
// update for identity frames, a message for everything else.
func DecodeEvent(payload []byte) chat.RelayEvent {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Type == TypeIdentity && env.Name != "" {
		return chat.RelayEvent{Identity: env.Name}
	}
	return chat.RelayEvent{Message: Decode(payload)}
}

// Decode turns an inbound payload into a message. Anything that is not a
// recognised envelope is shown verbatim as a system message.
func Decode(payload []byte) chat.Message {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var env Envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil {
			switch env.Type {
			case TypeChat:
				return chat.ChatMessage(env.Sender, env.Content)
			case TypeSystem:
				return chat.SystemMessage(env.Content)
			}
		}
	}
	return chat.SystemMessage(string(payload))
}
