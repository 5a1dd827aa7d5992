// Package notify is the change-feed substrate. Coordinators publish on
// logical topics after every mutation; subscribers treat a delivered
// event as a signal to re-read authoritative state, never as the state
// itself. Delivery is at-most-once per subscriber, ordered per topic,
// with no replay for late subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/openmic/micqueue/internal/domain"
)

const (
	TopicRooms = "rooms"
	TopicQueue = "speaker_queue"
)

// TopicQueueSession scopes queue changes to one participant's own entry.
func TopicQueueSession(sid domain.SessionID) string {
	return TopicQueue + ":" + string(sid)
}

// TopicAudio carries the ephemeral level samples of one room.
func TopicAudio(roomID domain.RoomID) string {
	return "audio:" + string(roomID)
}

// Event kinds. The payload carries identifiers only.
const (
	KindRoomClaimed   = "room.claimed"
	KindRoomClosed    = "room.closed"
	KindQueueJoined   = "queue.joined"
	KindQueueLeft     = "queue.left"
	KindQueueApproved = "queue.approved"
	KindQueueRejected = "queue.rejected"
	KindQueueSpeaking = "queue.speaking"
	KindQueueDone     = "queue.done"
	KindAudioLevel    = "audio.level"
)

type Event struct {
	Kind      string           `json:"kind"`
	RoomID    domain.RoomID    `json:"room_id,omitempty"`
	EntryID   domain.EntryID   `json:"entry_id,omitempty"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	Level     int              `json:"level,omitempty"`
}

// Handler is invoked asynchronously for every delivered event. It must
// not block for long; slow consumers get events dropped, not queued
// without bound.
type Handler func(Event)

type Notifier interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string, h Handler) (*Subscription, error)
}

// Subscription is the revocable handle returned by Subscribe.
// Unsubscribe is idempotent; repeated subscribe/unsubscribe cycles must
// not accumulate dangling handlers.
type Subscription struct {
	topic string
	once  sync.Once
	stop  func()
}

func (s *Subscription) Topic() string { return s.topic }

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}
