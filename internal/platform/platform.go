// Package platform holds the host-OS integrations the pipeline depends on:
// screen capture, foreground-window tracking, browser page lookup, and
// now-playing media. Native bindings register themselves per platform; the
// fallbacks here keep the daemon running (worker API, queue, store) on hosts
// without a capture integration.
package platform

import (
	"context"
	"sync"
	"time"

	"github.com/retracehq/retrace/pkg/models"
)

// UnsupportedCapturer reports no displays and no capture permission. The
// scheduler treats a permissionless host as a terminal reported state, not
// an error.
type UnsupportedCapturer struct{}

func (UnsupportedCapturer) CaptureAllDisplays(context.Context) ([]models.CaptureResult, error) {
	return nil, nil
}

func (UnsupportedCapturer) CheckScreenCapturePermission(context.Context) bool {
	return false
}

// StaticTracker serves a fixed foreground snapshot. Native trackers poll the
// window server at a higher frequency than the capture interval; this one
// exists for hosts without that integration and for wiring tests.
type StaticTracker struct {
	mu       sync.Mutex
	running  bool
	snapshot *models.ForegroundSnapshot
}

// NewStaticTracker creates a tracker serving the given snapshot.
func NewStaticTracker(snap *models.ForegroundSnapshot) *StaticTracker {
	return &StaticTracker{snapshot: snap}
}

func (t *StaticTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

func (t *StaticTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Snapshot returns the current foreground snapshot, stamped with the call
// time.
func (t *StaticTracker) Snapshot() *models.ForegroundSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot == nil {
		return nil
	}
	snap := *t.snapshot
	snap.CapturedAt = time.Now()
	return &snap
}

// SetSnapshot replaces the served snapshot.
func (t *StaticTracker) SetSnapshot(snap *models.ForegroundSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = snap
}

// NoPageSource is a PageSource for hosts without a browser integration.
type NoPageSource struct{}

func (NoPageSource) CurrentPage(context.Context, int) (*models.URLMetadata, error) {
	return nil, nil
}

// NoNowPlayingSource is a NowPlayingSource for hosts without a media
// integration.
type NoNowPlayingSource struct{}

func (NoNowPlayingSource) NowPlaying(context.Context) ([]models.BackgroundContext, error) {
	return nil, nil
}
