// Package db provides the GORM-backed SQLite store for retrace.
package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/retracehq/retrace/pkg/models"
)

// EventStore provides event-related database operations.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new event store.
func NewEventStore(store *Store) *EventStore {
	return &EventStore{db: store.DB}
}

// NewEventInput carries everything needed to insert a formed event with its
// screenshot rows.
type NewEventInput struct {
	TimestampEpoch int64
	DisplayID      string
	StableHash     string
	DetailHash     string
	Status         models.EventStatus
	Context        *models.ActivityContext
	Screenshots    []models.EventScreenshot
}

// FindRecentMatching returns the most recent non-dismissed event whose hash
// pair matches and whose end timestamp is still inside the merge window
// (end_timestamp_epoch + intervalMs >= newTimestampEpoch, inclusive).
// Returns nil when no event qualifies.
func (s *EventStore) FindRecentMatching(ctx context.Context, stableHash, detailHash string, newTimestampEpoch, intervalMs int64) (*models.Event, error) {
	var row Event
	err := s.db.WithContext(ctx).
		Where("stable_hash = ? AND detail_hash = ? AND dismissed = 0 AND end_timestamp_epoch + ? >= ?",
			stableHash, detailHash, intervalMs, newTimestampEpoch).
		Order("end_timestamp_epoch DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ExtendEvent merges a new capture into an existing event: end timestamp
// only ever increases, merged count increments by one.
func (s *EventStore) ExtendEvent(ctx context.Context, id, newTimestampEpoch int64) error {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"end_timestamp_epoch": gorm.Expr(
				"CASE WHEN ? > end_timestamp_epoch THEN ? ELSE end_timestamp_epoch END",
				newTimestampEpoch, newTimestampEpoch),
			"merged_count": gorm.Expr("merged_count + 1"),
		}).Error
}

// CreateEvent inserts a new event with its screenshot rows in one
// transaction and returns the event id.
func (s *EventStore) CreateEvent(ctx context.Context, input NewEventInput) (int64, error) {
	row := Event{
		TimestampEpoch:    input.TimestampEpoch,
		EndTimestampEpoch: input.TimestampEpoch,
		DisplayID:         input.DisplayID,
		StableHash:        input.StableHash,
		DetailHash:        input.DetailHash,
		Status:            string(input.Status),
	}
	if c := input.Context; c != nil {
		row.ContextKey = nullString(c.Key)
		row.AppName = nullString(c.App.Name)
		row.AppBundleID = nullString(c.App.BundleID)
		row.WindowTitle = nullString(c.Window.Title)
		if c.URL != nil {
			row.URLCanonical = nullString(c.URL.URLCanonical)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, shot := range input.Screenshots {
			shotRow := EventScreenshot{
				EventID:        row.ID,
				DisplayID:      shot.DisplayID,
				ThumbnailPath:  shot.ThumbnailPath,
				OriginalPath:   shot.OriginalPath,
				StableHash:     shot.StableHash,
				DetailHash:     shot.DetailHash,
				Width:          shot.Width,
				Height:         shot.Height,
				TimestampEpoch: shot.TimestampEpoch,
			}
			if shot.IsPrimary {
				shotRow.IsPrimary = 1
			}
			if err := tx.Create(&shotRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// GetEventByID retrieves an event by id. Returns nil when absent.
func (s *EventStore) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var row Event
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// GetScreenshots retrieves the screenshot rows of an event, primary first.
func (s *EventStore) GetScreenshots(ctx context.Context, eventID int64) ([]*models.EventScreenshot, error) {
	var rows []EventScreenshot
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("is_primary DESC, display_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	shots := make([]*models.EventScreenshot, 0, len(rows))
	for i := range rows {
		shots = append(shots, rows[i].toModel())
	}
	return shots, nil
}

// ListRecent retrieves the most recent non-dismissed events.
func (s *EventStore) ListRecent(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Event
	err := s.db.WithContext(ctx).
		Where("dismissed = 0").
		Order("end_timestamp_epoch DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]*models.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events, nil
}

// MarkProcessing moves a pending event to processing. Returns false when the
// event was not in pending state (status transitions are forward-only).
func (s *EventStore) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", id, string(models.EventStatusPending)).
		UpdateColumn("status", string(models.EventStatusProcessing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetClassification records a successful classification and completes the
// event.
func (s *EventStore) SetClassification(ctx context.Context, id int64, providerID string, result *models.ClassificationResult) error {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", id, string(models.EventStatusProcessing)).
		UpdateColumns(map[string]interface{}{
			"status":              string(models.EventStatusCompleted),
			"category":            nullString(result.Category),
			"summary":             nullString(result.Summary),
			"classified_by":       nullString(providerID),
			"classified_at_epoch": time.Now().UnixMilli(),
		}).Error
}

// MarkFailed moves a processing event to failed.
func (s *EventStore) MarkFailed(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", id, string(models.EventStatusProcessing)).
		UpdateColumn("status", string(models.EventStatusFailed)).Error
}

// MarkProjectProgress flags an event as manual project progress.
func (s *EventStore) MarkProjectProgress(ctx context.Context, id int64, evidence string) error {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"project_progress":          1,
			"project_progress_evidence": nullString(evidence),
		}).Error
}

// DismissEvent hides an event from merge lookups and listings.
func (s *EventStore) DismissEvent(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		UpdateColumn("dismissed", 1).Error
}
