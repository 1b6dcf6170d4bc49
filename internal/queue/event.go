// Package queue defines the auth event payload exchanged over the message
// broker and the consumer that writes those events to an audit log.
package queue

// AuthEventsQueue is the durable queue that carries AuthEvent messages.
const AuthEventsQueue = "auth.events"

// Event types published by the session manager.
const (
	EventSignup       = "signup"
	EventLogin        = "login"
	EventRefresh      = "refresh"
	EventLogout       = "logout"
	EventRevokeAll    = "revoke_all"
	EventRefreshReuse = "refresh_reuse"
)

// AuthEvent is published after a credential or session state change. It
// carries enough context for the audit consumer to write a line without
// querying the primary database. It never carries a raw token.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Count      int64  `json:"count,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
