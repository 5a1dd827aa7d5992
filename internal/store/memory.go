package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openmic/micqueue/internal/domain"
)

// MemoryRoomStore keeps rooms in a mutex-guarded map. One process, one
// lock, so ClaimActive is trivially atomic.
type MemoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]domain.Room
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{rooms: make(map[domain.RoomID]domain.Room)}
}

func (s *MemoryRoomStore) ClaimActive(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		if r.IsActive {
			r.IsActive = false
			s.rooms[id] = r
		}
	}
	s.rooms[room.ID] = *room
	return nil
}

func (s *MemoryRoomStore) Active(_ context.Context) (*domain.Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *domain.Room
	for id := range s.rooms {
		r := s.rooms[id]
		if !r.IsActive {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) ||
			(r.CreatedAt.Equal(newest.CreatedAt) && r.ID > newest.ID) {
			cp := r
			newest = &cp
		}
	}
	if newest == nil {
		return nil, false, nil
	}
	return newest, true, nil
}

func (s *MemoryRoomStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := r
	return &cp, nil
}

func (s *MemoryRoomStore) Deactivate(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	r.IsActive = false
	s.rooms[id] = r
	return nil
}

// MemoryQueueStore keeps queue entries in a mutex-guarded map.
type MemoryQueueStore struct {
	mu      sync.RWMutex
	entries map[domain.EntryID]domain.QueueEntry
}

func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{entries: make(map[domain.EntryID]domain.QueueEntry)}
}

func (s *MemoryQueueStore) Insert(_ context.Context, entry *domain.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.RoomID == entry.RoomID && e.SessionID == entry.SessionID {
			return domain.ErrDuplicateEntry
		}
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *MemoryQueueStore) Get(_ context.Context, id domain.EntryID) (*domain.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	cp := e
	return &cp, nil
}

func (s *MemoryQueueStore) BySession(_ context.Context, roomID domain.RoomID, sid domain.SessionID) (*domain.QueueEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.RoomID == roomID && e.SessionID == sid {
			cp := e
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryQueueStore) ListByRoom(_ context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QueueEntry, 0)
	for _, e := range s.entries {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryQueueStore) UpdateStatus(_ context.Context, id domain.EntryID, status domain.EntryStatus, approvedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.Status = status
	if approvedAt != nil {
		e.ApprovedAt = approvedAt
	}
	s.entries[id] = e
	return nil
}

func (s *MemoryQueueStore) FinishSpeaking(_ context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var done []domain.QueueEntry
	for id, e := range s.entries {
		if e.RoomID == roomID && e.Status == domain.StatusSpeaking {
			e.Status = domain.StatusDone
			s.entries[id] = e
			done = append(done, e)
		}
	}
	return done, nil
}

func (s *MemoryQueueStore) Delete(_ context.Context, id domain.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
