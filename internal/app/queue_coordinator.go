package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/idgen"
	"github.com/openmic/micqueue/internal/notify"
	"github.com/openmic/micqueue/internal/store"
)

// QueueCoordinator owns the queue entry lifecycle:
//
//	waiting -> approved -> speaking -> done
//	waiting -> rejected
//
// done and rejected are terminal; re-entering the queue means a new
// entry. Explicit leave deletes the entry from any status.
type QueueCoordinator struct {
	entries  store.QueueStore
	rooms    store.RoomStore
	notifier notify.Notifier

	newID func() string
	now   func() time.Time
}

func NewQueueCoordinator(entries store.QueueStore, rooms store.RoomStore, notifier notify.Notifier) *QueueCoordinator {
	return &QueueCoordinator{
		entries:  entries,
		rooms:    rooms,
		notifier: notifier,
		newID:    idgen.NewULID,
		now:      time.Now,
	}
}

// Join puts sid into the room's waiting queue. The room must be active,
// the name non-empty, and the pair (room, session) not yet queued.
func (c *QueueCoordinator) Join(ctx context.Context, roomID domain.RoomID, sid domain.SessionID, displayName string) (*domain.QueueEntry, error) {
	if sid == "" {
		return nil, domain.ErrIdentityMissing
	}
	if err := domain.ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	room, err := c.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, domain.ErrRoomInactive
	}
	entry := &domain.QueueEntry{
		ID:          domain.EntryID(c.newID()),
		RoomID:      roomID,
		SessionID:   sid,
		DisplayName: displayName,
		Status:      domain.StatusWaiting,
		CreatedAt:   c.now().UTC(),
	}
	if err := c.entries.Insert(ctx, entry); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.queue").Str("entry", string(entry.ID)).Str("room", string(roomID)).Msg("joined queue")
	c.publish(ctx, notify.KindQueueJoined, entry)
	return entry, nil
}

// Leave deletes the caller's own entry, whatever its status. Leaving an
// entry that is already gone is a no-op, not an error.
func (c *QueueCoordinator) Leave(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) error {
	entry, err := c.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return nil
		}
		return err
	}
	if entry.SessionID != sid {
		return domain.ErrNotEntryOwner
	}
	if err := c.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	log.Info().Str("module", "app.queue").Str("entry", string(entryID)).Msg("left queue")
	c.publish(ctx, notify.KindQueueLeft, entry)
	return nil
}

// Approve promotes a waiting entry. Any entry still speaking in the
// room is forced to done first, which keeps the single-speaker
// invariant before a new speaker can start. Host only.
func (c *QueueCoordinator) Approve(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error) {
	entry, err := c.hostEntry(ctx, entryID, sid)
	if err != nil {
		return nil, err
	}
	if !entry.CanTransition(domain.StatusApproved) {
		return nil, domain.ErrInvalidTransition
	}

	forced, err := c.entries.FinishSpeaking(ctx, entry.RoomID)
	if err != nil {
		return nil, err
	}
	for i := range forced {
		c.publish(ctx, notify.KindQueueDone, &forced[i])
	}

	approvedAt := c.now().UTC()
	if err := c.entries.UpdateStatus(ctx, entryID, domain.StatusApproved, &approvedAt); err != nil {
		return nil, err
	}
	entry.Status = domain.StatusApproved
	entry.ApprovedAt = &approvedAt
	log.Info().Str("module", "app.queue").Str("entry", string(entryID)).Msg("entry approved")
	c.publish(ctx, notify.KindQueueApproved, entry)
	return entry, nil
}

// Reject marks a waiting entry rejected, a terminal state with no
// queue-position side effects. Host only.
func (c *QueueCoordinator) Reject(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error) {
	entry, err := c.hostEntry(ctx, entryID, sid)
	if err != nil {
		return nil, err
	}
	if !entry.CanTransition(domain.StatusRejected) {
		return nil, domain.ErrInvalidTransition
	}
	if err := c.entries.UpdateStatus(ctx, entryID, domain.StatusRejected, nil); err != nil {
		return nil, err
	}
	entry.Status = domain.StatusRejected
	log.Info().Str("module", "app.queue").Str("entry", string(entryID)).Msg("entry rejected")
	c.publish(ctx, notify.KindQueueRejected, entry)
	return entry, nil
}

// StartSpeaking transitions the caller's own approved entry to
// speaking. The participant initiates this, not the host.
func (c *QueueCoordinator) StartSpeaking(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error) {
	entry, err := c.entries.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.SessionID != sid {
		return nil, domain.ErrNotEntryOwner
	}
	if !entry.CanTransition(domain.StatusSpeaking) {
		return nil, domain.ErrInvalidTransition
	}
	if err := c.entries.UpdateStatus(ctx, entryID, domain.StatusSpeaking, nil); err != nil {
		return nil, err
	}
	entry.Status = domain.StatusSpeaking
	log.Info().Str("module", "app.queue").Str("entry", string(entryID)).Msg("speaking")
	c.publish(ctx, notify.KindQueueSpeaking, entry)
	return entry, nil
}

// EndTurn moves a speaking entry to done. Host only; approving the next
// speaker ends the current turn implicitly.
func (c *QueueCoordinator) EndTurn(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error) {
	entry, err := c.hostEntry(ctx, entryID, sid)
	if err != nil {
		return nil, err
	}
	if !entry.CanTransition(domain.StatusDone) {
		return nil, domain.ErrInvalidTransition
	}
	if err := c.entries.UpdateStatus(ctx, entryID, domain.StatusDone, nil); err != nil {
		return nil, err
	}
	entry.Status = domain.StatusDone
	log.Info().Str("module", "app.queue").Str("entry", string(entryID)).Msg("turn ended")
	c.publish(ctx, notify.KindQueueDone, entry)
	return entry, nil
}

// Queue returns the room's entire queue, FIFO by creation time with
// entry id breaking ties deterministically.
func (c *QueueCoordinator) Queue(ctx context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error) {
	return c.entries.ListByRoom(ctx, roomID)
}

// EntryFor finds sid's entry in the room, if any. Clients use it to
// reconcile after a change event or a reconnect.
func (c *QueueCoordinator) EntryFor(ctx context.Context, roomID domain.RoomID, sid domain.SessionID) (*domain.QueueEntry, bool, error) {
	return c.entries.BySession(ctx, roomID, sid)
}

// hostEntry loads the entry and verifies sid hosts its room.
func (c *QueueCoordinator) hostEntry(ctx context.Context, entryID domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error) {
	entry, err := c.entries.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	room, err := c.rooms.Get(ctx, entry.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HostedBy(sid) {
		return nil, domain.ErrNotHost
	}
	return entry, nil
}

// publish fans a queue mutation out room-wide and to the affected
// session's personal topic. Best-effort, same as the room coordinator.
func (c *QueueCoordinator) publish(ctx context.Context, kind string, entry *domain.QueueEntry) {
	ev := notify.Event{
		Kind:      kind,
		RoomID:    entry.RoomID,
		EntryID:   entry.ID,
		SessionID: entry.SessionID,
	}
	if err := c.notifier.Publish(ctx, notify.TopicQueue, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.queue").Str("kind", kind).Msg("publish failed")
	}
	if err := c.notifier.Publish(ctx, notify.TopicQueueSession(entry.SessionID), ev); err != nil {
		log.Warn().Err(err).Str("module", "app.queue").Str("kind", kind).Msg("personal publish failed")
	}
}
