// Package db provides the GORM-backed SQLite store for retrace.
package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueStore provides classification work-queue operations.
type QueueStore struct {
	db *gorm.DB
}

// NewQueueStore creates a new queue store.
func NewQueueStore(store *Store) *QueueStore {
	return &QueueStore{db: store.DB}
}

// Enqueue adds an event to the classification queue. Idempotent: enqueueing
// an already-queued event is a no-op.
func (s *QueueStore) Enqueue(ctx context.Context, eventID int64) error {
	item := ClassifyQueueItem{EventID: eventID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item).Error
}

// IsQueued reports whether an event is waiting in the queue.
func (s *QueueStore) IsQueued(ctx context.Context, eventID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ClassifyQueueItem{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

// NextPending returns the oldest queued event id, or 0 when the queue is
// empty.
func (s *QueueStore) NextPending(ctx context.Context) (int64, error) {
	var item ClassifyQueueItem
	err := s.db.WithContext(ctx).
		Order("enqueued_epoch ASC, id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return item.EventID, nil
}

// Remove deletes an event from the queue.
func (s *QueueStore) Remove(ctx context.Context, eventID int64) error {
	return s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&ClassifyQueueItem{}).Error
}

// Len returns the number of queued items.
func (s *QueueStore) Len(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ClassifyQueueItem{}).Count(&count).Error
	return count, err
}
