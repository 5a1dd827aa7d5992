// Package app holds the coordinators: all mutation of rooms and queue
// entries goes through their named operations, never through direct
// store writes. Every actor is independent; the store's constraints and
// the notifier's change feed are the only coordination between them.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/idgen"
	"github.com/openmic/micqueue/internal/notify"
	"github.com/openmic/micqueue/internal/store"
)

// RoomCoordinator owns the room lifecycle: claim host, look up the
// active room, leave host. A room goes active -> inactive exactly once.
type RoomCoordinator struct {
	rooms    store.RoomStore
	notifier notify.Notifier

	newID func() string
	now   func() time.Time
}

func NewRoomCoordinator(rooms store.RoomStore, notifier notify.Notifier) *RoomCoordinator {
	return &RoomCoordinator{
		rooms:    rooms,
		notifier: notifier,
		newID:    idgen.NewULID,
		now:      time.Now,
	}
}

// ClaimHost deactivates whatever room is active and creates a fresh one
// with sid as host. Concurrent claims resolve to "last insert wins";
// the store forces pre-existing active rows inactive either way.
func (c *RoomCoordinator) ClaimHost(ctx context.Context, sid domain.SessionID) (*domain.Room, error) {
	if sid == "" {
		return nil, domain.ErrIdentityMissing
	}
	room := &domain.Room{
		ID:            domain.RoomID(c.newID()),
		HostSessionID: sid,
		IsActive:      true,
		CreatedAt:     c.now().UTC(),
	}
	if err := c.rooms.ClaimActive(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.room").Str("room", string(room.ID)).Str("sid", string(sid)).Msg("host claimed")
	c.publish(ctx, notify.Event{Kind: notify.KindRoomClaimed, RoomID: room.ID, SessionID: sid})
	return room, nil
}

// ActiveRoom returns the single active room. If more than one is
// transiently active after a racing claim, the newest wins.
func (c *RoomCoordinator) ActiveRoom(ctx context.Context) (*domain.Room, bool, error) {
	return c.rooms.Active(ctx)
}

// Room looks up a room by id regardless of its active state.
func (c *RoomCoordinator) Room(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return c.rooms.Get(ctx, id)
}

// LeaveHost deactivates the room. Only its host may do this; the room
// record stays behind as history.
func (c *RoomCoordinator) LeaveHost(ctx context.Context, roomID domain.RoomID, sid domain.SessionID) error {
	room, err := c.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HostedBy(sid) {
		return domain.ErrNotHost
	}
	if !room.IsActive {
		return nil
	}
	if err := c.rooms.Deactivate(ctx, roomID); err != nil {
		return err
	}
	log.Info().Str("module", "app.room").Str("room", string(roomID)).Msg("host left, room closed")
	c.publish(ctx, notify.Event{Kind: notify.KindRoomClosed, RoomID: roomID, SessionID: sid})
	return nil
}

// publish is best-effort: an unreachable notifier degrades consumers to
// polling, it never fails the mutation that already committed.
func (c *RoomCoordinator) publish(ctx context.Context, ev notify.Event) {
	if err := c.notifier.Publish(ctx, notify.TopicRooms, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.room").Str("kind", ev.Kind).Msg("publish failed")
	}
}
