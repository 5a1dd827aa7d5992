package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmic/micqueue/internal/app"
	"github.com/openmic/micqueue/internal/config"
	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/identity"
	"github.com/openmic/micqueue/internal/notify"
	"github.com/openmic/micqueue/internal/relay"
)

type Handler struct {
	rooms    *app.RoomCoordinator
	queue    *app.QueueCoordinator
	relay    *relay.AudioLevelRelay
	notifier notify.Notifier
	cfg      *config.Config
}

func NewHandler(rooms *app.RoomCoordinator, queue *app.QueueCoordinator, r *relay.AudioLevelRelay, n notify.Notifier, cfg *config.Config) *Handler {
	return &Handler{rooms: rooms, queue: queue, relay: r, notifier: n, cfg: cfg}
}

// writeError maps domain sentinels to HTTP statuses. Everything not
// recognized is an infrastructure failure the caller should retry.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrIdentityMissing):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotHost), errors.Is(err, domain.ErrNotEntryOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomInactive):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateEntry), errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) ClaimHost(c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	room, err := h.rooms.ClaimHost(c.Request.Context(), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room, "join_path": joinPath(room.ID)})
}

// joinPath is the link/QR target a host shares; the room id is the only
// addressing a client needs.
func joinPath(roomID domain.RoomID) string {
	return "/r/" + string(roomID)
}

func (h *Handler) ActiveRoom(c *gin.Context) {
	sid, _ := identity.FromContext(c)
	room, ok, err := h.rooms.ActiveRoom(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"room": nil, "is_host": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "is_host": room.HostedBy(sid)})
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.rooms.Room(c.Request.Context(), domain.RoomID(c.Param("roomID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *Handler) LeaveHost(c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.rooms.LeaveHost(c.Request.Context(), domain.RoomID(c.Param("roomID")), sid); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type joinRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) Join(c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	entry, err := h.queue.Join(c.Request.Context(), domain.RoomID(c.Param("roomID")), sid, req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (h *Handler) Queue(c *gin.Context) {
	entries, err := h.queue.Queue(c.Request.Context(), domain.RoomID(c.Param("roomID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) MyEntry(c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	entry, ok, err := h.queue.EntryFor(c.Request.Context(), domain.RoomID(c.Param("roomID")), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"entry": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h *Handler) Leave(c *gin.Context) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.queue.Leave(c.Request.Context(), domain.EntryID(c.Param("entryID")), sid); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, h.queue.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.transition(c, h.queue.Reject)
}

func (h *Handler) StartSpeaking(c *gin.Context) {
	h.transition(c, h.queue.StartSpeaking)
}

func (h *Handler) EndTurn(c *gin.Context) {
	h.transition(c, h.queue.EndTurn)
}

type transitionFunc func(ctx context.Context, id domain.EntryID, sid domain.SessionID) (*domain.QueueEntry, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	sid, err := identity.FromContext(c)
	if err != nil {
		writeError(c, err)
		return
	}
	entry, err := fn(c.Request.Context(), domain.EntryID(c.Param("entryID")), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}
