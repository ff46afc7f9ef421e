// Package models contains domain models for retrace.
package models

import "time"

// CaptureResult is one per-display capture produced by the screen-capture
// mechanism. StableHash is a coarse perceptual fingerprint used to group
// "likely the same scene"; DetailHash is a fine fingerprint used to confirm
// near-identity. Both are opaque strings to the pipeline.
type CaptureResult struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	DisplayID     string    `json:"display_id"`
	ThumbnailPath string    `json:"thumbnail_path"`
	OriginalPath  string    `json:"original_path"`
	StableHash    string    `json:"stable_hash"`
	DetailHash    string    `json:"detail_hash"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
}

// Rect is a window bounding box in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ForegroundApp identifies the frontmost application at capture time.
type ForegroundApp struct {
	Name     string `json:"name"`
	BundleID string `json:"bundle_id"`
	PID      int    `json:"pid"`
}

// ForegroundWindow describes the focused window of the foreground app.
type ForegroundWindow struct {
	Title        string `json:"title"`
	Bounds       Rect   `json:"bounds"`
	DisplayID    string `json:"display_id"`
	IsFullscreen bool   `json:"is_fullscreen"`
}

// ForegroundSnapshot is the atomic unit handed to every context provider.
type ForegroundSnapshot struct {
	CapturedAt time.Time        `json:"captured_at"`
	App        ForegroundApp    `json:"app"`
	Window     ForegroundWindow `json:"window"`
}
