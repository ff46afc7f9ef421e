// Package capture contains the capture scheduler and the event formation
// engine.
package capture

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/pkg/models"
)

// GroupInput is one batch of simultaneous per-display captures plus the
// enriched context and per-intent options.
type GroupInput struct {
	Captures          []models.CaptureResult
	IntervalMs        int64
	PrimaryDisplayID  string
	Context           *models.ActivityContext
	EnqueueToLLMQueue bool
	AllowMerge        bool
}

// Engine content-addresses capture batches against persisted history and
// decides merge vs. create. All calls are serialized: the merge lookup and
// the insert must be atomic per batch, otherwise two concurrent batches can
// both decide "no match" and double-insert.
type Engine struct {
	mu       sync.Mutex
	events   *db.EventStore
	queue    *db.QueueStore
	files    FileOps
	notifier Notifier
}

// NewEngine creates a formation engine.
func NewEngine(events *db.EventStore, queue *db.QueueStore, files FileOps, notifier Notifier) *Engine {
	if files == nil {
		files = OSFileOps{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{events: events, queue: queue, files: files, notifier: notifier}
}

// ProcessCaptureGroup merges the batch into the most recent matching event
// inside the interval window, or creates a new event with per-display
// screenshot rows. A failed event (primary file missing) is still recorded,
// preserving the audit trail; the caller distinguishes success via a status
// lookup, not via the returned result.
func (e *Engine) ProcessCaptureGroup(ctx context.Context, input GroupInput) (models.FormationResult, error) {
	if len(input.Captures) == 0 {
		return models.FormationResult{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	primaryIdx := selectPrimary(input.Captures, input.PrimaryDisplayID)
	primary := input.Captures[primaryIdx]
	newTimestamp := primary.Timestamp.UnixMilli()

	if input.AllowMerge {
		existing, err := e.events.FindRecentMatching(ctx, primary.StableHash, primary.DetailHash, newTimestamp, input.IntervalMs)
		if err != nil {
			return models.FormationResult{}, err
		}
		if existing != nil {
			if err := e.events.ExtendEvent(ctx, existing.ID, newTimestamp); err != nil {
				return models.FormationResult{}, err
			}
			// The new files are redundant with the already-stored
			// representative image.
			e.removeCaptureFiles(input.Captures)
			log.Debug().Int64("eventId", existing.ID).Str("key", contextKey(input.Context)).
				Msg("Merged capture into existing event")
			e.notifier.EventUpdated(existing.ID)
			return models.FormationResult{Merged: true, EventID: existing.ID}, nil
		}
	}

	if !e.files.Exists(primary.OriginalPath) {
		// The file was deleted or never flushed to disk. Record the event
		// as failed rather than dropping it silently; never enqueue.
		id, err := e.events.CreateEvent(ctx, db.NewEventInput{
			TimestampEpoch: newTimestamp,
			DisplayID:      primary.DisplayID,
			StableHash:     primary.StableHash,
			DetailHash:     primary.DetailHash,
			Status:         models.EventStatusFailed,
			Context:        input.Context,
			Screenshots:    []models.EventScreenshot{captureToScreenshot(primary, true)},
		})
		if err != nil {
			return models.FormationResult{}, err
		}
		log.Warn().Int64("eventId", id).Str("path", primary.OriginalPath).
			Msg("Primary capture file missing, event recorded as failed")
		return models.FormationResult{EventID: id}, nil
	}

	screenshots := make([]models.EventScreenshot, 0, len(input.Captures))
	for i, c := range input.Captures {
		screenshots = append(screenshots, captureToScreenshot(c, i == primaryIdx))
	}

	id, err := e.events.CreateEvent(ctx, db.NewEventInput{
		TimestampEpoch: newTimestamp,
		DisplayID:      primary.DisplayID,
		StableHash:     primary.StableHash,
		DetailHash:     primary.DetailHash,
		Status:         models.EventStatusPending,
		Context:        input.Context,
		Screenshots:    screenshots,
	})
	if err != nil {
		return models.FormationResult{}, err
	}

	if input.EnqueueToLLMQueue {
		if err := e.queue.Enqueue(ctx, id); err != nil {
			return models.FormationResult{}, err
		}
	}

	log.Debug().Int64("eventId", id).Int("displays", len(input.Captures)).
		Bool("enqueued", input.EnqueueToLLMQueue).Msg("Created event")
	e.notifier.EventCreated(id)
	return models.FormationResult{EventID: id}, nil
}

// selectPrimary picks the index of the capture for the requested display,
// falling back to the first capture of the batch.
func selectPrimary(captures []models.CaptureResult, primaryDisplayID string) int {
	for i, c := range captures {
		if c.DisplayID == primaryDisplayID {
			return i
		}
	}
	return 0
}

// removeCaptureFiles deletes the thumbnail, original, and derived high-res
// variant for every capture in the batch. Removal failures are logged, not
// propagated: the merge already happened.
func (e *Engine) removeCaptureFiles(captures []models.CaptureResult) {
	for _, c := range captures {
		for _, path := range []string{c.ThumbnailPath, c.OriginalPath, highResVariant(c.OriginalPath)} {
			if path == "" {
				continue
			}
			if err := e.files.Remove(path); err != nil {
				log.Debug().Str("path", path).Err(err).Msg("Failed to remove redundant capture file")
			}
		}
	}
}

func captureToScreenshot(c models.CaptureResult, isPrimary bool) models.EventScreenshot {
	return models.EventScreenshot{
		DisplayID:      c.DisplayID,
		IsPrimary:      isPrimary,
		ThumbnailPath:  c.ThumbnailPath,
		OriginalPath:   c.OriginalPath,
		StableHash:     c.StableHash,
		DetailHash:     c.DetailHash,
		Width:          c.Width,
		Height:         c.Height,
		TimestampEpoch: c.Timestamp.UnixMilli(),
	}
}

func contextKey(ac *models.ActivityContext) string {
	if ac == nil {
		return ""
	}
	return ac.Key
}
