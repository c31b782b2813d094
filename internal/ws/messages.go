package ws

import (
	"encoding/json"
	"time"

	"roomrelay/internal/presence"
)

// Client -> server operations.
const (
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventSendChat   = "send-chat"
	EventSendSignal = "send-signal"
)

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// JoinRoomRequest is the body for "join-room". Identity may be omitted; when
// present it must match the authenticated identity.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"   validate:"required,max=128"`
	Identity string `json:"identity" validate:"max=64"`
}

type JoinRoomAck struct {
	RoomID       string            `json:"roomId"`
	ConnectionID presence.ConnID   `json:"connectionId"`
	Members      []presence.Member `json:"members"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type SendChatRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	Text   string `json:"text"   validate:"required,max=4000"`
}

type SendChatAck struct {
	RoomID          string    `json:"roomId"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
}

// SendSignalRequest addresses either every connection of an identity or one
// connection. Payload is relayed untouched.
type SendSignalRequest struct {
	TargetIdentity     string          `json:"targetIdentity"     validate:"required_without=TargetConnectionID,max=64"`
	TargetConnectionID presence.ConnID `json:"targetConnectionId" validate:"max=64"`
	Payload            json.RawMessage `json:"payload"            validate:"required"`
}

type SendSignalAck struct {
	Delivered int `json:"delivered"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}
