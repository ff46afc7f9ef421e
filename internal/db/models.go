// Package db provides the GORM-backed SQLite store for retrace.
package db

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/retracehq/retrace/pkg/models"
)

// Event is the persisted event row. One row per formed event; merges extend
// end_timestamp_epoch and merged_count instead of inserting.
type Event struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	TimestampEpoch    int64  `gorm:"index:idx_events_timestamp,sort:desc;not null"`
	EndTimestampEpoch int64  `gorm:"index:idx_events_hashes,priority:3,sort:desc;not null"`
	DisplayID         string `gorm:"not null"`
	StableHash        string `gorm:"index:idx_events_hashes,priority:1;not null"`
	DetailHash        string `gorm:"index:idx_events_hashes,priority:2;not null"`
	MergedCount       int    `gorm:"default:1;not null"`
	Dismissed         int    `gorm:"default:0;index;not null"`
	Status            string `gorm:"type:text;check:status IN ('pending', 'processing', 'completed', 'failed');index;not null"`

	// Context fields attached at formation time
	ContextKey   sql.NullString `gorm:"type:text"`
	AppName      sql.NullString `gorm:"type:text"`
	AppBundleID  sql.NullString `gorm:"type:text;index"`
	WindowTitle  sql.NullString `gorm:"type:text"`
	URLCanonical sql.NullString `gorm:"type:text"`

	// Manual progress marking
	ProjectProgress         int            `gorm:"default:0"`
	ProjectProgressEvidence sql.NullString `gorm:"type:text"`

	// Classification fields populated by the queue consumer
	Category          sql.NullString `gorm:"type:text"`
	Summary           sql.NullString `gorm:"type:text"`
	ClassifiedBy      sql.NullString `gorm:"type:text"`
	ClassifiedAtEpoch sql.NullInt64

	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (Event) TableName() string { return "events" }

// BeforeCreate hook to ensure timestamps and defaults are set.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = now.UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now.Format(time.RFC3339)
	}
	if e.MergedCount == 0 {
		e.MergedCount = 1
	}
	if e.EndTimestampEpoch == 0 {
		e.EndTimestampEpoch = e.TimestampEpoch
	}
	return nil
}

// EventScreenshot is one per-display capture row belonging to an event.
// Exactly one row per event carries is_primary = 1.
type EventScreenshot struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	EventID        int64  `gorm:"index;not null"`
	DisplayID      string `gorm:"not null"`
	IsPrimary      int    `gorm:"default:0;not null"`
	ThumbnailPath  string `gorm:"type:text;not null"`
	OriginalPath   string `gorm:"type:text;not null"`
	StableHash     string `gorm:"not null"`
	DetailHash     string `gorm:"not null"`
	Width          int    `gorm:"not null"`
	Height         int    `gorm:"not null"`
	TimestampEpoch int64  `gorm:"not null"`
}

func (EventScreenshot) TableName() string { return "event_screenshots" }

// ClassifyQueueItem is one pending classification job. event_id is unique so
// enqueueing is idempotent.
type ClassifyQueueItem struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	EventID       int64  `gorm:"uniqueIndex;not null"`
	EnqueuedAt    string
	EnqueuedEpoch int64  `gorm:"index;not null"`
}

func (ClassifyQueueItem) TableName() string { return "classify_queue" }

// BeforeCreate hook to ensure timestamps are set.
func (q *ClassifyQueueItem) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if q.EnqueuedEpoch == 0 {
		q.EnqueuedEpoch = now.UnixMilli()
	}
	if q.EnqueuedAt == "" {
		q.EnqueuedAt = now.Format(time.RFC3339)
	}
	return nil
}

// toModel converts an event row to the domain model.
func (e *Event) toModel() *models.Event {
	return &models.Event{
		ID:                      e.ID,
		TimestampEpoch:          e.TimestampEpoch,
		EndTimestampEpoch:       e.EndTimestampEpoch,
		DisplayID:               e.DisplayID,
		StableHash:              e.StableHash,
		DetailHash:              e.DetailHash,
		MergedCount:             e.MergedCount,
		Dismissed:               e.Dismissed != 0,
		Status:                  models.EventStatus(e.Status),
		ContextKey:              e.ContextKey.String,
		AppName:                 e.AppName.String,
		AppBundleID:             e.AppBundleID.String,
		WindowTitle:             e.WindowTitle.String,
		URLCanonical:            e.URLCanonical.String,
		ProjectProgress:         e.ProjectProgress,
		ProjectProgressEvidence: e.ProjectProgressEvidence.String,
		Category:                e.Category.String,
		Summary:                 e.Summary.String,
		ClassifiedBy:            e.ClassifiedBy.String,
		ClassifiedAtEpoch:       e.ClassifiedAtEpoch.Int64,
		CreatedAt:               e.CreatedAt,
	}
}

// toModel converts a screenshot row to the domain model.
func (s *EventScreenshot) toModel() *models.EventScreenshot {
	return &models.EventScreenshot{
		ID:             s.ID,
		EventID:        s.EventID,
		DisplayID:      s.DisplayID,
		IsPrimary:      s.IsPrimary != 0,
		ThumbnailPath:  s.ThumbnailPath,
		OriginalPath:   s.OriginalPath,
		StableHash:     s.StableHash,
		DetailHash:     s.DetailHash,
		Width:          s.Width,
		Height:         s.Height,
		TimestampEpoch: s.TimestampEpoch,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
