// Package relay moves microphone level samples from the speaking
// participant to whoever is listening, over the same notification
// substrate the coordinators publish on. Samples are transient: no
// durability, no backpressure, dropped when nobody subscribes.
package relay

import (
	"context"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/notify"
)

type AudioLevelRelay struct {
	notifier notify.Notifier
}

func NewAudioLevelRelay(n notify.Notifier) *AudioLevelRelay {
	return &AudioLevelRelay{notifier: n}
}

// Emit pushes one sample to the room's audio topic. The level is
// clamped to the metering bounds before fan-out.
func (r *AudioLevelRelay) Emit(ctx context.Context, sample domain.LevelSample) error {
	return r.notifier.Publish(ctx, notify.TopicAudio(sample.RoomID), notify.Event{
		Kind:      notify.KindAudioLevel,
		RoomID:    sample.RoomID,
		SessionID: sample.SessionID,
		Level:     domain.ClampLevel(sample.Level),
	})
}

// SubscribeLevels delivers samples for roomID as they arrive until the
// returned subscription is revoked.
func (r *AudioLevelRelay) SubscribeLevels(ctx context.Context, roomID domain.RoomID, h func(domain.LevelSample)) (*notify.Subscription, error) {
	return r.notifier.Subscribe(ctx, notify.TopicAudio(roomID), func(ev notify.Event) {
		if ev.Kind != notify.KindAudioLevel {
			return
		}
		h(domain.LevelSample{
			RoomID:    roomID,
			SessionID: ev.SessionID,
			Level:     domain.ClampLevel(ev.Level),
		})
	})
}
