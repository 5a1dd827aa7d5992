package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openmic/micqueue/internal/domain"
)

// PostgresDB wraps the gorm handle so callers never touch gorm directly.
type PostgresDB struct {
	db *gorm.DB
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the rooms and speaker_queue tables,
// including the composite unique index backing the double-join guard.
func (p *PostgresDB) AutoMigrate() error {
	return p.db.AutoMigrate(&roomRow{}, &queueRow{})
}

type roomRow struct {
	ID            string    `gorm:"primaryKey;size:26"`
	HostSessionID string    `gorm:"size:64;not null"`
	IsActive      bool      `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (roomRow) TableName() string { return "rooms" }

type queueRow struct {
	ID          string    `gorm:"primaryKey;size:26"`
	RoomID      string    `gorm:"size:26;not null;uniqueIndex:idx_room_session"`
	SessionID   string    `gorm:"size:64;not null;uniqueIndex:idx_room_session"`
	DisplayName string    `gorm:"size:36;not null"`
	Status      string    `gorm:"size:16;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	ApprovedAt  *time.Time
}

func (queueRow) TableName() string { return "speaker_queue" }

func (r roomRow) toDomain() *domain.Room {
	return &domain.Room{
		ID:            domain.RoomID(r.ID),
		HostSessionID: domain.SessionID(r.HostSessionID),
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
	}
}

func (q queueRow) toDomain() *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:          domain.EntryID(q.ID),
		RoomID:      domain.RoomID(q.RoomID),
		SessionID:   domain.SessionID(q.SessionID),
		DisplayName: q.DisplayName,
		Status:      domain.EntryStatus(q.Status),
		CreatedAt:   q.CreatedAt,
		ApprovedAt:  q.ApprovedAt,
	}
}

type PostgresRoomStore struct {
	db *gorm.DB
}

func NewPostgresRoomStore(p *PostgresDB) *PostgresRoomStore {
	return &PostgresRoomStore{db: p.db}
}

func (s *PostgresRoomStore) ClaimActive(ctx context.Context, room *domain.Room) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&roomRow{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		row := roomRow{
			ID:            string(room.ID),
			HostSessionID: string(room.HostSessionID),
			IsActive:      room.IsActive,
			CreatedAt:     room.CreatedAt,
		}
		return tx.Create(&row).Error
	})
}

func (s *PostgresRoomStore) Active(ctx context.Context) (*domain.Room, bool, error) {
	var rows []roomRow
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (s *PostgresRoomStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var row roomRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *PostgresRoomStore) Deactivate(ctx context.Context, id domain.RoomID) error {
	res := s.db.WithContext(ctx).Model(&roomRow{}).
		Where("id = ?", string(id)).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

type PostgresQueueStore struct {
	db *gorm.DB
}

func NewPostgresQueueStore(p *PostgresDB) *PostgresQueueStore {
	return &PostgresQueueStore{db: p.db}
}

func (s *PostgresQueueStore) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	row := queueRow{
		ID:          string(entry.ID),
		RoomID:      string(entry.RoomID),
		SessionID:   string(entry.SessionID),
		DisplayName: entry.DisplayName,
		Status:      string(entry.Status),
		CreatedAt:   entry.CreatedAt,
		ApprovedAt:  entry.ApprovedAt,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateEntry
	}
	return err
}

func (s *PostgresQueueStore) Get(ctx context.Context, id domain.EntryID) (*domain.QueueEntry, error) {
	var row queueRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *PostgresQueueStore) BySession(ctx context.Context, roomID domain.RoomID, sid domain.SessionID) (*domain.QueueEntry, bool, error) {
	var rows []queueRow
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND session_id = ?", string(roomID), string(sid)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (s *PostgresQueueStore) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error) {
	var rows []queueRow
	err := s.db.WithContext(ctx).
		Where("room_id = ?", string(roomID)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.QueueEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

func (s *PostgresQueueStore) UpdateStatus(ctx context.Context, id domain.EntryID, status domain.EntryStatus, approvedAt *time.Time) error {
	updates := map[string]any{"status": string(status)}
	if approvedAt != nil {
		updates["approved_at"] = *approvedAt
	}
	res := s.db.WithContext(ctx).Model(&queueRow{}).
		Where("id = ?", string(id)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (s *PostgresQueueStore) FinishSpeaking(ctx context.Context, roomID domain.RoomID) ([]domain.QueueEntry, error) {
	var done []domain.QueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []queueRow
		if err := tx.Where("room_id = ? AND status = ?", string(roomID), string(domain.StatusSpeaking)).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Model(&queueRow{}).
			Where("room_id = ? AND status = ?", string(roomID), string(domain.StatusSpeaking)).
			Update("status", string(domain.StatusDone)).Error; err != nil {
			return err
		}
		for _, r := range rows {
			e := r.toDomain()
			e.Status = domain.StatusDone
			done = append(done, *e)
		}
		return nil
	})
	return done, err
}

func (s *PostgresQueueStore) Delete(ctx context.Context, id domain.EntryID) error {
	return s.db.WithContext(ctx).Delete(&queueRow{}, "id = ?", string(id)).Error
}
