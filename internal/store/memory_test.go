package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmic/micqueue/internal/domain"
)

func TestMemoryRoomStore_ClaimActive_DeactivatesPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()

	first := &domain.Room{ID: "r1", HostSessionID: "a", IsActive: true, CreatedAt: time.Now()}
	if err := s.ClaimActive(ctx, first); err != nil {
		t.Fatalf("claim r1: %v", err)
	}
	second := &domain.Room{ID: "r2", HostSessionID: "b", IsActive: true, CreatedAt: time.Now().Add(time.Second)}
	if err := s.ClaimActive(ctx, second); err != nil {
		t.Fatalf("claim r2: %v", err)
	}

	active, ok, err := s.Active(ctx)
	if err != nil || !ok {
		t.Fatalf("expected an active room, got ok=%v err=%v", ok, err)
	}
	if active.ID != "r2" {
		t.Errorf("active room = %s, want r2", active.ID)
	}

	old, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get r1: %v", err)
	}
	if old.IsActive {
		t.Error("first room must be inactive after a second claim")
	}
}

func TestMemoryRoomStore_Active_TieBreaksByNewest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()
	at := time.Now()

	// Force two active rows directly, bypassing ClaimActive, to model
	// the transient window a racing claim can leave behind.
	s.rooms["r1"] = domain.Room{ID: "r1", IsActive: true, CreatedAt: at}
	s.rooms["r2"] = domain.Room{ID: "r2", IsActive: true, CreatedAt: at.Add(time.Millisecond)}

	active, ok, err := s.Active(ctx)
	if err != nil || !ok {
		t.Fatalf("expected an active room, got ok=%v err=%v", ok, err)
	}
	if active.ID != "r2" {
		t.Errorf("active room = %s, want the newest (r2)", active.ID)
	}
}

func TestMemoryQueueStore_Insert_RejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQueueStore()

	entry := &domain.QueueEntry{ID: "e1", RoomID: "r1", SessionID: "s1", Status: domain.StatusWaiting, CreatedAt: time.Now()}
	if err := s.Insert(ctx, entry); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := &domain.QueueEntry{ID: "e2", RoomID: "r1", SessionID: "s1", Status: domain.StatusWaiting, CreatedAt: time.Now()}
	if err := s.Insert(ctx, dup); !errors.Is(err, domain.ErrDuplicateEntry) {
		t.Errorf("duplicate (room, session) insert: expected ErrDuplicateEntry, got %v", err)
	}

	// Same session in another room is fine.
	other := &domain.QueueEntry{ID: "e3", RoomID: "r2", SessionID: "s1", Status: domain.StatusWaiting, CreatedAt: time.Now()}
	if err := s.Insert(ctx, other); err != nil {
		t.Errorf("same session, different room: unexpected error %v", err)
	}

	// After delete the pair is free again.
	if err := s.Delete(ctx, "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	again := &domain.QueueEntry{ID: "e4", RoomID: "r1", SessionID: "s1", Status: domain.StatusWaiting, CreatedAt: time.Now()}
	if err := s.Insert(ctx, again); err != nil {
		t.Errorf("rejoin after leave: unexpected error %v", err)
	}
}

func TestMemoryQueueStore_ListByRoom_FIFOWithIDTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQueueStore()
	at := time.Now()

	// Inserted out of order on purpose; same timestamp for e2/e3 so the
	// id decides.
	entries := []domain.QueueEntry{
		{ID: "e3", RoomID: "r1", SessionID: "s3", CreatedAt: at.Add(time.Second)},
		{ID: "e1", RoomID: "r1", SessionID: "s1", CreatedAt: at},
		{ID: "e2", RoomID: "r1", SessionID: "s2", CreatedAt: at.Add(time.Second)},
		{ID: "e9", RoomID: "other", SessionID: "s9", CreatedAt: at},
	}
	for i := range entries {
		if err := s.Insert(ctx, &entries[i]); err != nil {
			t.Fatalf("insert %s: %v", entries[i].ID, err)
		}
	}

	got, err := s.ListByRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	wantOrder := []domain.EntryID{"e1", "e2", "e3"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d entries, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestMemoryQueueStore_FinishSpeaking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQueueStore()

	speaking := &domain.QueueEntry{ID: "e1", RoomID: "r1", SessionID: "s1", Status: domain.StatusSpeaking, CreatedAt: time.Now()}
	waiting := &domain.QueueEntry{ID: "e2", RoomID: "r1", SessionID: "s2", Status: domain.StatusWaiting, CreatedAt: time.Now()}
	if err := s.Insert(ctx, speaking); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, waiting); err != nil {
		t.Fatal(err)
	}

	done, err := s.FinishSpeaking(ctx, "r1")
	if err != nil {
		t.Fatalf("finish speaking: %v", err)
	}
	if len(done) != 1 || done[0].ID != "e1" || done[0].Status != domain.StatusDone {
		t.Errorf("forced entries = %+v, want e1 done", done)
	}

	e2, err := s.Get(ctx, "e2")
	if err != nil {
		t.Fatal(err)
	}
	if e2.Status != domain.StatusWaiting {
		t.Errorf("waiting entry touched by FinishSpeaking: %s", e2.Status)
	}
}

func TestMemoryQueueStore_Delete_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQueueStore()
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing entry must be a no-op, got %v", err)
	}
}
