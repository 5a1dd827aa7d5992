package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomInactive        = errors.New("room is not active")
	ErrEntryNotFound       = errors.New("queue entry not found")
	ErrDuplicateEntry      = errors.New("session already queued in this room")
	ErrInvalidName         = errors.New("display name empty or too long")
	ErrInvalidTransition   = errors.New("invalid queue entry transition")
	ErrNotHost             = errors.New("forbidden: not the room host")
	ErrNotEntryOwner       = errors.New("forbidden: not the entry owner")
	ErrIdentityMissing     = errors.New("session identity not established")
	ErrIdentityUnavailable = errors.New("session identity storage unavailable")
)
