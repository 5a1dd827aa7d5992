package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/notify"
)

// LevelMonitor is the consumer side of the relay contract: it tracks
// the latest level for a room and treats the source as silent once no
// sample has arrived within the silence window, decaying the reading
// to zero. Start/Stop cycles leak nothing.
type LevelMonitor struct {
	relay  *AudioLevelRelay
	window time.Duration

	mu       sync.Mutex
	level    int
	lastSeen time.Time

	sub    *notify.Subscription
	cancel context.CancelFunc
}

func NewLevelMonitor(r *AudioLevelRelay, window time.Duration) *LevelMonitor {
	return &LevelMonitor{relay: r, window: window}
}

// Start subscribes to the room's audio topic and begins the liveness
// sweep. Calling Start on a running monitor restarts it.
func (m *LevelMonitor) Start(ctx context.Context, roomID domain.RoomID) error {
	m.Stop()

	ctx, cancel := context.WithCancel(ctx)
	sub, err := m.relay.SubscribeLevels(ctx, roomID, func(s domain.LevelSample) {
		m.mu.Lock()
		m.level = s.Level
		m.lastSeen = time.Now()
		m.mu.Unlock()
	})
	if err != nil {
		cancel()
		return err
	}

	m.mu.Lock()
	m.sub = sub
	m.cancel = cancel
	m.mu.Unlock()

	go m.sweep(ctx, roomID)
	return nil
}

// sweep resets the reading once the silence window elapses with no
// samples. The tick is a fraction of the window so the flip to silent
// is observed promptly.
func (m *LevelMonitor) sweep(ctx context.Context, roomID domain.RoomID) {
	tick := m.window / 4
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "relay").Str("room", string(roomID)).Msg("level monitor stopped")
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.lastSeen.IsZero() && time.Since(m.lastSeen) > m.window {
				m.level = 0
				m.lastSeen = time.Time{}
			}
			m.mu.Unlock()
		}
	}
}

// Level returns the current reading and whether samples are arriving
// within the silence window.
func (m *LevelMonitor) Level() (level int, receiving bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSeen.IsZero() || time.Since(m.lastSeen) > m.window {
		return 0, false
	}
	return m.level, true
}

// Stop revokes the subscription and halts the sweep. Safe to call
// repeatedly or on a monitor that never started.
func (m *LevelMonitor) Stop() {
	m.mu.Lock()
	sub, cancel := m.sub, m.cancel
	m.sub, m.cancel = nil, nil
	m.level = 0
	m.lastSeen = time.Time{}
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}
