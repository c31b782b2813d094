package relay

import "errors"

// Wire-visible error codes are snake_case; clients match on them.
var (
	ErrAuthFailure       = errors.New("auth_failure")
	ErrTargetUnavailable = errors.New("target_unavailable")
	ErrDurableWrite      = errors.New("durable_write_failure")
	ErrDelivery          = errors.New("delivery_failure")

	ErrNotMember        = errors.New("not_a_member")
	ErrIdentityMismatch = errors.New("identity_mismatch")
	ErrSessionClosed    = errors.New("session_closed")
	ErrInvalidRequest   = errors.New("invalid_request")

	// Returned by Peer implementations.
	ErrPeerClosed    = errors.New("peer closed")
	ErrPeerQueueFull = errors.New("peer send queue full")
)
