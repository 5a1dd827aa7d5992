package domain

import "time"

type EntryID string

const MaxDisplayNameLen = 36

// EntryStatus is the lifecycle state of a queue entry.
type EntryStatus string

const (
	StatusWaiting  EntryStatus = "waiting"
	StatusApproved EntryStatus = "approved"
	StatusRejected EntryStatus = "rejected"
	StatusSpeaking EntryStatus = "speaking"
	StatusDone     EntryStatus = "done"
)

// QueueEntry is one participant's request-to-speak record within a room.
// (RoomID, SessionID) is unique while the entry exists; a participant
// who left must join again to get a new entry.
type QueueEntry struct {
	ID          EntryID     `json:"id"`
	RoomID      RoomID      `json:"room_id"`
	SessionID   SessionID   `json:"session_id"`
	DisplayName string      `json:"display_name"`
	Status      EntryStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ApprovedAt  *time.Time  `json:"approved_at,omitempty"`
}

// CanTransition reports whether the entry may move from its current
// status to next. Explicit leave is a delete, not a transition, so it
// is not covered here. done and rejected are terminal.
func (e *QueueEntry) CanTransition(next EntryStatus) bool {
	switch e.Status {
	case StatusWaiting:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusSpeaking
	case StatusSpeaking:
		return next == StatusDone
	default:
		return false
	}
}

// ValidateDisplayName checks the participant-supplied name.
func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrInvalidName
	}
	if len(name) > MaxDisplayNameLen {
		return ErrInvalidName
	}
	return nil
}
