package recorder

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/event"
	"main/pkg/exception"
)

// EventRecord is the persisted form of one journaled event.
type EventRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Kind      string    `gorm:"size:32;index"`
	Origin    string    `gorm:"size:64"`
	Payload   string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName implements the gorm table naming convention.
func (EventRecord) TableName() string { return "event_records" }

// Store mirrors journaled events into Postgres for offline inspection.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "recorder store requires a database")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate event records")
	}
	return &Store{db: db}, nil
}

// Save persists one event.
func (s *Store) Save(ctx context.Context, e event.Event) error {
	payload, err := codec.Marshal(e.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}
	rec := EventRecord{
		Kind:      e.Kind.String(),
		Origin:    e.Origin,
		Payload:   string(payload),
		CreatedAt: e.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "insert event record")
	}
	return nil
}

// Recent returns up to limit most recent records of one kind.
func (s *Store) Recent(ctx context.Context, kind event.Kind, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []EventRecord
	err := s.db.WithContext(ctx).
		Where("kind = ?", kind.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "query event records")
	}
	return out, nil
}
