package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
)

// LevelSource reports the current metered microphone level, 0-100.
// Capture and amplitude computation live outside the core; this is the
// seam they plug into.
type LevelSource func() int

// Sampler emits one sample per tick for as long as its context lives.
// It is bound to the capture session, not to any rendering concern:
// cancel the context and emission stops entirely.
type Sampler struct {
	relay    *AudioLevelRelay
	interval time.Duration
	source   LevelSource
}

func NewSampler(r *AudioLevelRelay, interval time.Duration, source LevelSource) *Sampler {
	return &Sampler{relay: r, interval: interval, source: source}
}

// Run blocks until ctx is cancelled. Emit failures are logged and the
// loop keeps going; a lost sample is indistinguishable from silence on
// the receiving end and the next tick replaces it.
func (s *Sampler) Run(ctx context.Context, roomID domain.RoomID, sid domain.SessionID) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "relay").Str("room", string(roomID)).Msg("sampler stopped")
			return
		case <-ticker.C:
			sample := domain.LevelSample{
				RoomID:    roomID,
				SessionID: sid,
				Level:     s.source(),
			}
			if err := s.relay.Emit(ctx, sample); err != nil {
				log.Warn().Err(err).Str("module", "relay").Str("room", string(roomID)).Msg("emit sample failed")
			}
		}
	}
}
