package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/identity"
	"github.com/openmic/micqueue/internal/notify"
)

var errBackpressure = errors.New("backpressure")

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps one client connection with a bounded send queue. A full
// queue drops the frame; event consumers re-fetch state on the next
// delivered event, and a lost level sample is replaced a tick later.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, send: make(chan []byte, 32)}
}

func (c *wsConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return errBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// eventFrame is what the events socket delivers: the topic plus the
// re-fetch signal that was published on it.
type eventFrame struct {
	Topic string `json:"topic"`
	notify.Event
}

// HandleEvents bridges the notifier to one client: room changes, queue
// changes and the client's personal queue topic. All subscriptions are
// revoked when the socket goes away.
func (h *Handler) HandleEvents(ctx context.Context, c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	conn := newWSConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	topics := []string{
		notify.TopicRooms,
		notify.TopicQueue,
		notify.TopicQueueSession(sid),
	}
	subs := make([]*notify.Subscription, 0, len(topics))
	for _, topic := range topics {
		topic := topic
		sub, err := h.notifier.Subscribe(ctx, topic, func(ev notify.Event) {
			b, err := json.Marshal(eventFrame{Topic: topic, Event: ev})
			if err != nil {
				return
			}
			if err := conn.TrySend(b); err != nil {
				log.Debug().Str("module", "adapters.ws").Str("topic", topic).Msg("dropping event frame")
			}
		})
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.ws").Str("topic", topic).Msg("subscribe failed")
			break
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		conn.Close()
	}()

	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("events socket open")

	go h.writePump(ctx, conn)
	h.readPump(ctx, conn, nil)
}

// levelIn is the frame a speaking client sends on the audio socket.
type levelIn struct {
	Level int `json:"level"`
}

// HandleAudio serves the room's ephemeral level stream on one socket:
// frames the client sends are emitted as samples, samples from the
// room's topic are delivered back. The host only listens; the speaker
// only sends.
func (h *Handler) HandleAudio(ctx context.Context, c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	roomID := domain.RoomID(c.Param("roomID"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	conn := newWSConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := h.relay.SubscribeLevels(ctx, roomID, func(s domain.LevelSample) {
		b, err := json.Marshal(s)
		if err != nil {
			return
		}
		_ = conn.TrySend(b)
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Str("room", string(roomID)).Msg("level subscribe failed")
		conn.Close()
		return
	}
	defer func() {
		sub.Unsubscribe()
		conn.Close()
	}()

	log.Info().Str("module", "adapters.ws").Str("room", string(roomID)).Str("sid", string(sid)).Msg("audio socket open")

	go h.writePump(ctx, conn)
	h.readPump(ctx, conn, func(data []byte) {
		var in levelIn
		if err := json.Unmarshal(data, &in); err != nil {
			log.Debug().Str("module", "adapters.ws").Msg("bad level frame")
			return
		}
		sample := domain.LevelSample{RoomID: roomID, SessionID: sid, Level: in.Level}
		if err := h.relay.Emit(ctx, sample); err != nil {
			log.Warn().Err(err).Str("module", "adapters.ws").Msg("emit failed")
		}
	})
}

func (h *Handler) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the peer goes away. onMessage may be nil for
// sockets where the client never sends application frames.
func (h *Handler) readPump(ctx context.Context, c *wsConn, onMessage func([]byte)) {
	defer c.Close()

	c.conn.SetReadLimit(h.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("module", "adapters.ws").Msg("read error")
				}
				return
			}
			// Incoming frames also prove liveness.
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			if onMessage != nil {
				onMessage(data)
			}
		}
	}
}
