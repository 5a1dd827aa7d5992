package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/notify"
	"github.com/openmic/micqueue/internal/store"
)

type queueFixture struct {
	rooms    *RoomCoordinator
	queue    *QueueCoordinator
	notifier *notify.MemoryNotifier
}

func newQueueFixture() *queueFixture {
	roomStore := store.NewMemoryRoomStore()
	queueStore := store.NewMemoryQueueStore()
	notifier := notify.NewMemoryNotifier()
	return &queueFixture{
		rooms:    NewRoomCoordinator(roomStore, notifier),
		queue:    NewQueueCoordinator(queueStore, roomStore, notifier),
		notifier: notifier,
	}
}

func (f *queueFixture) activeRoom(t *testing.T, host domain.SessionID) *domain.Room {
	t.Helper()
	room, err := f.rooms.ClaimHost(context.Background(), host)
	if err != nil {
		t.Fatalf("claim host: %v", err)
	}
	return room
}

func TestQueueCoordinator_Join(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	entry, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if entry.Status != domain.StatusWaiting {
		t.Errorf("new entry status = %s, want waiting", entry.Status)
	}
	if entry.ApprovedAt != nil {
		t.Error("new entry must not carry an approval timestamp")
	}

	if _, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice again"); !errors.Is(err, domain.ErrDuplicateEntry) {
		t.Errorf("double join: expected ErrDuplicateEntry, got %v", err)
	}
	if _, err := f.queue.Join(ctx, room.ID, "bob-session", ""); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("empty name: expected ErrInvalidName, got %v", err)
	}
	if _, err := f.queue.Join(ctx, "missing-room", "bob-session", "Bob"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("unknown room: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := f.queue.Join(ctx, room.ID, "", "Ghost"); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Errorf("no identity: expected ErrIdentityMissing, got %v", err)
	}
}

func TestQueueCoordinator_Join_InactiveRoom(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	r1 := f.activeRoom(t, "host-a")
	f.activeRoom(t, "host-b") // deactivates r1

	if _, err := f.queue.Join(ctx, r1.ID, "alice-session", "Alice"); !errors.Is(err, domain.ErrRoomInactive) {
		t.Errorf("join deactivated room: expected ErrRoomInactive, got %v", err)
	}
}

func TestQueueCoordinator_Leave(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	entry, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	if err := f.queue.Leave(ctx, entry.ID, "bob-session"); !errors.Is(err, domain.ErrNotEntryOwner) {
		t.Errorf("foreign leave: expected ErrNotEntryOwner, got %v", err)
	}
	if err := f.queue.Leave(ctx, entry.ID, "alice-session"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	// Leaving twice is a no-op, not an error.
	if err := f.queue.Leave(ctx, entry.ID, "alice-session"); err != nil {
		t.Errorf("second leave: unexpected error %v", err)
	}

	// The pair is free again; a fresh join gets a new entry.
	again, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatalf("rejoin after leave: %v", err)
	}
	if again.ID == entry.ID {
		t.Error("rejoin must create a new entry")
	}
}

func TestQueueCoordinator_HostApprovalFlow(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	e1, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	e2, err := f.queue.Join(ctx, room.ID, "bob-session", "Bob")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.queue.Approve(ctx, e1.ID, "alice-session"); !errors.Is(err, domain.ErrNotHost) {
		t.Errorf("non-host approve: expected ErrNotHost, got %v", err)
	}

	approved, err := f.queue.Approve(ctx, e1.ID, "host")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.StatusApproved || approved.ApprovedAt == nil {
		t.Errorf("approved entry = %+v, want status approved with timestamp", approved)
	}

	// The participant, not the host, starts speaking.
	if _, err := f.queue.StartSpeaking(ctx, e1.ID, "host"); !errors.Is(err, domain.ErrNotEntryOwner) {
		t.Errorf("host start-speaking: expected ErrNotEntryOwner, got %v", err)
	}
	speaking, err := f.queue.StartSpeaking(ctx, e1.ID, "alice-session")
	if err != nil {
		t.Fatalf("start speaking: %v", err)
	}
	if speaking.Status != domain.StatusSpeaking {
		t.Errorf("status = %s, want speaking", speaking.Status)
	}

	// Approving the next entry forces the current speaker to done.
	if _, err := f.queue.Approve(ctx, e2.ID, "host"); err != nil {
		t.Fatalf("approve second: %v", err)
	}
	entries, err := f.queue.Queue(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[domain.EntryID]domain.EntryStatus{}
	for _, e := range entries {
		byID[e.ID] = e.Status
	}
	if byID[e1.ID] != domain.StatusDone {
		t.Errorf("previous speaker = %s, want done", byID[e1.ID])
	}
	if byID[e2.ID] != domain.StatusApproved {
		t.Errorf("new entry = %s, want approved", byID[e2.ID])
	}

	// Single-speaker invariant over the whole queue.
	speakers := 0
	for _, st := range byID {
		if st == domain.StatusSpeaking {
			speakers++
		}
	}
	if speakers > 0 {
		t.Errorf("%d entries speaking after promotion, want 0", speakers)
	}
}

func TestQueueCoordinator_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	entry, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	// Speaking before approval.
	if _, err := f.queue.StartSpeaking(ctx, entry.ID, "alice-session"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("speak while waiting: expected ErrInvalidTransition, got %v", err)
	}
	// Ending a turn that never started.
	if _, err := f.queue.EndTurn(ctx, entry.ID, "host"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("end turn while waiting: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.queue.Approve(ctx, entry.ID, "host"); err != nil {
		t.Fatal(err)
	}
	// A second approve on an already-approved entry is an explicit
	// invalid transition, never a corruption of the speaker invariant.
	if _, err := f.queue.Approve(ctx, entry.ID, "host"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double approve: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.queue.Reject(ctx, entry.ID, "host"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("reject after approve: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.queue.Approve(ctx, "missing", "host"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("approve missing entry: expected ErrEntryNotFound, got %v", err)
	}
}

func TestQueueCoordinator_Reject(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	entry, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := f.queue.Reject(ctx, entry.ID, "host")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	// Terminal: the participant must rejoin for another attempt, and
	// the old entry still occupies the (room, session) pair.
	if _, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice"); !errors.Is(err, domain.ErrDuplicateEntry) {
		t.Errorf("rejoin while rejected entry exists: expected ErrDuplicateEntry, got %v", err)
	}
}

func TestQueueCoordinator_FIFOOrdering(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	f.queue.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	sessions := []domain.SessionID{"s1", "s2", "s3"}
	for i, sid := range sessions {
		if _, err := f.queue.Join(ctx, room.ID, sid, "P"+string(rune('1'+i))); err != nil {
			t.Fatalf("join %s: %v", sid, err)
		}
	}

	entries, err := f.queue.Queue(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(sessions) {
		t.Fatalf("got %d entries, want %d", len(entries), len(sessions))
	}
	for i, sid := range sessions {
		if entries[i].SessionID != sid {
			t.Errorf("position %d = %s, want %s", i, entries[i].SessionID, sid)
		}
	}
}

func TestQueueCoordinator_PublishesPersonalTopic(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture()
	room := f.activeRoom(t, "host")

	got := make(chan notify.Event, 4)
	sub, err := f.notifier.Subscribe(ctx, notify.TopicQueueSession("alice-session"), func(ev notify.Event) { got <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	entry, err := f.queue.Join(ctx, room.ID, "alice-session", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.Kind != notify.KindQueueJoined || ev.EntryID != entry.ID {
			t.Errorf("personal event = %+v, want queue.joined for %s", ev, entry.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no personal-topic event after join")
	}
}
