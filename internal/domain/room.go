// Package domain contains the entities of the speaking-queue system,
// just data and invariant checks, no transport or storage logic.
package domain

import "time"

type (
	RoomID    string
	SessionID string
)

// Room is one hosting session. At most one room is active system-wide;
// a room that went inactive never reactivates, claiming host again
// always creates a fresh row.
type Room struct {
	ID            RoomID    `json:"id"`
	HostSessionID SessionID `json:"host_session_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// HostedBy reports whether sid holds the host role for this room.
func (r *Room) HostedBy(sid SessionID) bool {
	return r.HostSessionID == sid
}
