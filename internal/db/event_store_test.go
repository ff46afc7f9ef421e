package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/pkg/models"
)

func testEventStore(t *testing.T) (*EventStore, func()) {
	t.Helper()
	store, cleanup := testStore(t)
	return NewEventStore(store), cleanup
}

func newTestEvent(ts int64) NewEventInput {
	return NewEventInput{
		TimestampEpoch: ts,
		DisplayID:      "display-1",
		StableHash:     "stable-a",
		DetailHash:     "detail-a",
		Status:         models.EventStatusPending,
		Screenshots: []models.EventScreenshot{
			{
				DisplayID:      "display-1",
				IsPrimary:      true,
				ThumbnailPath:  "/tmp/thumb.png",
				OriginalPath:   "/tmp/orig.png",
				StableHash:     "stable-a",
				DetailHash:     "detail-a",
				Width:          1920,
				Height:         1080,
				TimestampEpoch: ts,
			},
		},
	}
}

func TestEventStore_CreateAndGet(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	input := newTestEvent(1000)
	input.Context = &models.ActivityContext{
		App:    models.ForegroundApp{Name: "Safari", BundleID: "com.apple.Safari"},
		Window: models.ForegroundWindow{Title: "Example"},
		URL:    &models.URLMetadata{URLCanonical: "https://example.com/", Host: "example.com"},
		Key:    "web:example_com:_",
	}

	id, err := events.CreateEvent(ctx, input)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	event, err := events.GetEventByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, int64(1000), event.TimestampEpoch)
	assert.Equal(t, int64(1000), event.EndTimestampEpoch)
	assert.Equal(t, 1, event.MergedCount)
	assert.Equal(t, models.EventStatusPending, event.Status)
	assert.Equal(t, "com.apple.Safari", event.AppBundleID)
	assert.Equal(t, "web:example_com:_", event.ContextKey)
	assert.Equal(t, "https://example.com/", event.URLCanonical)
	assert.NotEmpty(t, event.CreatedAt)

	shots, err := events.GetScreenshots(ctx, id)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.True(t, shots[0].IsPrimary)
	assert.Equal(t, "display-1", shots[0].DisplayID)
}

func TestEventStore_GetEventByID_Missing(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()

	event, err := events.GetEventByID(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestEventStore_FindRecentMatching_WindowBoundary(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	const intervalMs = 5_000

	// Exactly on the boundary: end + interval == new timestamp matches.
	match, err := events.FindRecentMatching(ctx, "stable-a", "detail-a", 15_000, intervalMs)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, id, match.ID)

	// One past the boundary does not.
	match, err = events.FindRecentMatching(ctx, "stable-a", "detail-a", 15_001, intervalMs)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEventStore_FindRecentMatching_HashPair(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	// Either hash differing means no match.
	match, err := events.FindRecentMatching(ctx, "stable-b", "detail-a", 11_000, 5_000)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = events.FindRecentMatching(ctx, "stable-a", "detail-b", 11_000, 5_000)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEventStore_FindRecentMatching_PrefersMostRecent(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)
	newer, err := events.CreateEvent(ctx, newTestEvent(12_000))
	require.NoError(t, err)

	match, err := events.FindRecentMatching(ctx, "stable-a", "detail-a", 13_000, 5_000)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, newer, match.ID)
}

func TestEventStore_FindRecentMatching_SkipsDismissed(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)
	require.NoError(t, events.DismissEvent(ctx, id))

	match, err := events.FindRecentMatching(ctx, "stable-a", "detail-a", 11_000, 5_000)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEventStore_ExtendEvent(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	require.NoError(t, events.ExtendEvent(ctx, id, 12_000))

	event, err := events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(12_000), event.EndTimestampEpoch)
	assert.Equal(t, 2, event.MergedCount)

	// An older timestamp still counts as a merge but never moves the end
	// backwards.
	require.NoError(t, events.ExtendEvent(ctx, id, 11_000))

	event, err = events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(12_000), event.EndTimestampEpoch)
	assert.Equal(t, 3, event.MergedCount)
}

func TestEventStore_StatusTransitions(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	claimed, err := events.MarkProcessing(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim must fail: transitions are forward-only.
	claimed, err = events.MarkProcessing(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed)

	result := &models.ClassificationResult{Category: "browsing", Summary: "Reading docs"}
	require.NoError(t, events.SetClassification(ctx, id, "rules", result))

	event, err := events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, event.Status)
	assert.Equal(t, "browsing", event.Category)
	assert.Equal(t, "rules", event.ClassifiedBy)
	assert.Greater(t, event.ClassifiedAtEpoch, int64(0))

	// A completed event cannot move to failed.
	require.NoError(t, events.MarkFailed(ctx, id))
	event, err = events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, event.Status)
}

func TestEventStore_MarkFailed(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	claimed, err := events.MarkProcessing(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, events.MarkFailed(ctx, id))

	event, err := events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusFailed, event.Status)
}

func TestEventStore_MarkProjectProgress(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)

	require.NoError(t, events.MarkProjectProgress(ctx, id, "manual"))

	event, err := events.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, event.ProjectProgress)
	assert.Equal(t, "manual", event.ProjectProgressEvidence)
}

func TestEventStore_ListRecent(t *testing.T) {
	events, cleanup := testEventStore(t)
	defer cleanup()
	ctx := context.Background()

	first, err := events.CreateEvent(ctx, newTestEvent(10_000))
	require.NoError(t, err)
	second, err := events.CreateEvent(ctx, newTestEvent(20_000))
	require.NoError(t, err)
	dismissed, err := events.CreateEvent(ctx, newTestEvent(30_000))
	require.NoError(t, err)
	require.NoError(t, events.DismissEvent(ctx, dismissed))

	list, err := events.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
}
