package relay

import (
	"encoding/json"
	"time"

	"roomrelay/internal/presence"
)

// Envelope wraps every websocket frame, in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "send-chat"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Server -> client events.
const (
	EventWelcome           = "welcome"
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventChatMessage       = "chat-message"
	EventSignal            = "signal"
	EventError             = "error"
)

type WelcomeBody struct {
	ConnectionID presence.ConnID `json:"connectionId"`
	Identity     string          `json:"identity"`
}

type ParticipantJoinedBody struct {
	RoomID       string          `json:"roomId"`
	ConnectionID presence.ConnID `json:"connectionId"`
	Identity     string          `json:"identity"`
}

type ParticipantLeftBody struct {
	RoomID       string          `json:"roomId"`
	ConnectionID presence.ConnID `json:"connectionId"`
}

// ChatMessage only lives for the duration of one broadcast.
type ChatMessage struct {
	RoomID          string    `json:"roomId"`
	Text            string    `json:"text"`
	Identity        string    `json:"identity"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
}

// SignalBody carries an opaque handshake payload; it is never decoded.
type SignalBody struct {
	SourceConnectionID presence.ConnID `json:"sourceConnectionId"`
	SourceIdentity     string          `json:"sourceIdentity"`
	Payload            json.RawMessage `json:"payload"`
}

// ErrorBody answers a failed client operation. Event names the operation.
type ErrorBody struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

// Encode marshals an event into a ready-to-send frame.
func Encode(event string, body any) ([]byte, error) {
	env := Envelope{Event: event}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		env.Body = raw
	}
	return json.Marshal(env)
}
