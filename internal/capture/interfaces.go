// Package capture contains the capture scheduler and the event formation
// engine: the pipeline that turns raw per-display captures into
// deduplicated, enriched, classified activity events.
package capture

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/retracehq/retrace/pkg/models"
)

// ScreenCapturer is the raw screen-capture mechanism. It produces pixel
// buffers, hashes and files outside this pipeline; here only its results
// matter.
type ScreenCapturer interface {
	CaptureAllDisplays(ctx context.Context) ([]models.CaptureResult, error)
	CheckScreenCapturePermission(ctx context.Context) bool
}

// ActivityTracker is the lower-level, higher-frequency focus signal used to
// backfill context when a capture races with a focus change. The scheduler
// drives its lifecycle and pauses it during captures so the pipeline does
// not observe its own capture UI.
type ActivityTracker interface {
	Start()
	Stop()
	Snapshot() *models.ForegroundSnapshot
}

// Notifier receives fire-and-forget UI notifications. The pipeline stays
// fully testable without a UI attached.
type Notifier interface {
	PermissionRequired()
	EventCreated(eventID int64)
	EventUpdated(eventID int64)
	EventsChanged()
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) PermissionRequired() {}
func (NopNotifier) EventCreated(int64)  {}
func (NopNotifier) EventUpdated(int64)  {}
func (NopNotifier) EventsChanged()      {}

// FileOps abstracts the few filesystem operations the formation engine
// needs, so tests run without real screenshot files.
type FileOps interface {
	Exists(path string) bool
	Remove(path string) error
}

// OSFileOps is the real-filesystem FileOps.
type OSFileOps struct{}

// Exists reports whether the path exists.
func (OSFileOps) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the path; a missing file is not an error.
func (OSFileOps) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// highResVariant returns the derived high-resolution image path for an
// original ("shot.png" -> "shot@2x.png").
func highResVariant(originalPath string) string {
	ext := filepath.Ext(originalPath)
	return strings.TrimSuffix(originalPath, ext) + "@2x" + ext
}
