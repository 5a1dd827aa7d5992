// Package store persists rooms and queue entries. Two backends exist:
// postgres for real deployments and an in-process memory store for
// single-node mode and tests. Uniqueness invariants (one active room,
// one entry per (room, session)) are enforced here, not by callers,
// because independent actors race on these tables.
package store

import (
	"context"
	"time"

	"github.com/openmic/micqueue/internal/domain"
)

type RoomStore interface {
	// ClaimActive deactivates every currently-active room and inserts
	// room as the new active one, as a single atomic step.
	ClaimActive(ctx context.Context, room *domain.Room) error

	// Active returns the active room, newest-created first if more
	// than one transiently exists. ok is false when there is none.
	Active(ctx context.Context) (room *domain.Room, ok bool, err error)

	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Deactivate(ctx context.Context, id domain.RoomID) error
}

type QueueStore interface {
	// Insert fails with domain.ErrDuplicateEntry when an entry for the
	// same (room, session) pair already exists.
	Insert(ctx context.Context, entry *domain.QueueEntry) error

	Get(ctx context.Context, id domain.EntryID) (*domain.QueueEntry, error)
	BySession(ctx context.Context, roomID domain.RoomID, sid domain.SessionID) (entry *domain.QueueEntry, ok bool, err error)

	// ListByRoom returns the room's entries ordered by created_at
	// ascending, entry id ascending on equal timestamps.
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error)

	UpdateStatus(ctx context.Context, id domain.EntryID, status domain.EntryStatus, approvedAt *time.Time) error

	// FinishSpeaking forces every speaking entry of the room to done
	// and returns the affected entries.
	FinishSpeaking(ctx context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error)

	// Delete removes the entry in any status. Deleting a missing entry
	// is a no-op.
	Delete(ctx context.Context, id domain.EntryID) error
}
