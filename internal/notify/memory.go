package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// subBuffer bounds the per-subscriber queue. A full queue drops the
// event rather than stalling the publisher; consumers reconcile by
// re-reading state anyway.
const subBuffer = 32

type memorySub struct {
	handler Handler
	ch      chan Event
}

// MemoryNotifier fans out events in-process. One delivery goroutine per
// subscriber keeps per-topic publish order for that subscriber.
type MemoryNotifier struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string]map[*memorySub]struct{})}
}

func (n *MemoryNotifier) Publish(_ context.Context, topic string, ev Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for sub := range n.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("module", "notify").Str("topic", topic).Str("kind", ev.Kind).Msg("subscriber queue full, dropping event")
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(_ context.Context, topic string, h Handler) (*Subscription, error) {
	sub := &memorySub{handler: h, ch: make(chan Event, subBuffer)}

	n.mu.Lock()
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[*memorySub]struct{})
	}
	n.subs[topic][sub] = struct{}{}
	n.mu.Unlock()

	go func() {
		for ev := range sub.ch {
			sub.handler(ev)
		}
	}()

	return &Subscription{
		topic: topic,
		stop: func() {
			n.mu.Lock()
			if set, ok := n.subs[topic]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(n.subs, topic)
				}
			}
			n.mu.Unlock()
			// Publish sends under the read lock, so nobody can be
			// mid-send on this channel once we hold the write lock.
			close(sub.ch)
		},
	}, nil
}
