// Package notify provides best-effort fan-out of domain events to connected
// clients. Broadcast failures are intentionally non-fatal: callers are
// permitted to discard the returned error, and no business operation may
// fail, retry, or roll back because a broadcast did not go through.
package notify

// Room keys scope a broadcast to one user's or one event's subscribers.

// UserRoom returns the room key for a user's private notifications.
func UserRoom(userID string) string { return "user-" + userID }

// EventRoom returns the room key for an event's subscribers.
func EventRoom(eventID string) string { return "event-" + eventID }

// Broadcaster is the notification contract consumed by the engine and the
// lifecycle manager. Both methods are fire-and-forget from the caller's
// perspective.
type Broadcaster interface {
	// BroadcastToAll delivers a named event to every connected client.
	BroadcastToAll(event string, payload any) error

	// BroadcastToRoom delivers a named event to clients joined to room.
	BroadcastToRoom(room, event string, payload any) error
}

// Nop is a Broadcaster that discards everything. Used when no websocket hub
// is wired, and in tests.
type Nop struct{}

func (Nop) BroadcastToAll(string, any) error { return nil }
func (Nop) BroadcastToRoom(string, string, any) error { return nil }

var _ Broadcaster = Nop{}
