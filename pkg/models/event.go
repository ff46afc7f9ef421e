// Package models contains domain models for retrace.
package models

// EventStatus represents the classification lifecycle of an event.
// Transitions only move forward (pending → processing → completed|failed),
// except that an event whose primary screenshot file is already gone is
// inserted as failed directly.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
)

// Event is the persisted unit of activity, possibly spanning several merged
// captures. Invariants: EndTimestampEpoch >= TimestampEpoch, MergedCount >= 1.
type Event struct {
	ID                      int64       `db:"id" json:"id"`
	TimestampEpoch          int64       `db:"timestamp_epoch" json:"timestamp_epoch"`
	EndTimestampEpoch       int64       `db:"end_timestamp_epoch" json:"end_timestamp_epoch"`
	DisplayID               string      `db:"display_id" json:"display_id"`
	StableHash              string      `db:"stable_hash" json:"stable_hash"`
	DetailHash              string      `db:"detail_hash" json:"detail_hash"`
	MergedCount             int         `db:"merged_count" json:"merged_count"`
	Dismissed               bool        `db:"dismissed" json:"dismissed"`
	Status                  EventStatus `db:"status" json:"status"`
	ContextKey              string      `db:"context_key" json:"context_key,omitempty"`
	AppName                 string      `db:"app_name" json:"app_name,omitempty"`
	AppBundleID             string      `db:"app_bundle_id" json:"app_bundle_id,omitempty"`
	WindowTitle             string      `db:"window_title" json:"window_title,omitempty"`
	URLCanonical            string      `db:"url_canonical" json:"url_canonical,omitempty"`
	ProjectProgress         int         `db:"project_progress" json:"project_progress"`
	ProjectProgressEvidence string      `db:"project_progress_evidence" json:"project_progress_evidence,omitempty"`
	Category                string      `db:"category" json:"category,omitempty"`
	Summary                 string      `db:"summary" json:"summary,omitempty"`
	ClassifiedBy            string      `db:"classified_by" json:"classified_by,omitempty"`
	ClassifiedAtEpoch       int64       `db:"classified_at_epoch" json:"classified_at_epoch,omitempty"`
	CreatedAt               string      `db:"created_at" json:"created_at"`
}

// EventScreenshot is one per-display capture belonging to an event.
// Exactly one row per event carries IsPrimary.
type EventScreenshot struct {
	ID             int64  `db:"id" json:"id"`
	EventID        int64  `db:"event_id" json:"event_id"`
	DisplayID      string `db:"display_id" json:"display_id"`
	IsPrimary      bool   `db:"is_primary" json:"is_primary"`
	ThumbnailPath  string `db:"thumbnail_path" json:"thumbnail_path"`
	OriginalPath   string `db:"original_path" json:"original_path"`
	StableHash     string `db:"stable_hash" json:"stable_hash"`
	DetailHash     string `db:"detail_hash" json:"detail_hash"`
	Width          int    `db:"width" json:"width"`
	Height         int    `db:"height" json:"height"`
	TimestampEpoch int64  `db:"timestamp_epoch" json:"timestamp_epoch"`
}

// FormationResult is the synchronous outcome of processing a capture group.
// A failed event still yields Merged=false with its id; callers distinguish
// success via a subsequent status lookup.
type FormationResult struct {
	Merged  bool  `json:"merged"`
	EventID int64 `json:"event_id"`
}

// CaptureIntent is the purpose tag of a manual capture.
type CaptureIntent string

const (
	IntentDefault         CaptureIntent = "default"
	IntentProjectProgress CaptureIntent = "project_progress"
)

// FormationOptions is the explicit per-intent configuration for the
// formation engine.
type FormationOptions struct {
	AllowMerge        bool
	EnqueueToLLMQueue bool
}

// Options maps an intent to its formation options. A manual progress capture
// must never silently fold into a prior event and must not be
// auto-classified.
func (i CaptureIntent) Options() FormationOptions {
	if i == IntentProjectProgress {
		return FormationOptions{AllowMerge: false, EnqueueToLLMQueue: false}
	}
	return FormationOptions{AllowMerge: true, EnqueueToLLMQueue: true}
}
