package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retracehq/retrace/internal/classify"
	"github.com/retracehq/retrace/internal/config"
	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/internal/worker/sse"
	"github.com/retracehq/retrace/pkg/models"
)

// pollInterval is how often the consumer checks for queued work when idle.
const pollInterval = 2 * time.Second

// QueueConsumerDeps wires the consumer's collaborators.
type QueueConsumerDeps struct {
	Events      *db.EventStore
	Queue       *db.QueueStore
	Router      *classify.Router
	Broadcaster *sse.Broadcaster
	Config      *config.Config
}

// QueueConsumer drains the classification queue one event at a time, oldest
// first. Classification is asynchronous on purpose: event formation never
// waits on a provider.
type QueueConsumer struct {
	events      *db.EventStore
	queue       *db.QueueStore
	classifier  *classify.Router
	broadcaster *sse.Broadcaster
	config      *config.Config
}

// NewQueueConsumer creates a queue consumer.
func NewQueueConsumer(deps QueueConsumerDeps) *QueueConsumer {
	return &QueueConsumer{
		events:      deps.Events,
		queue:       deps.Queue,
		classifier:  deps.Router,
		broadcaster: deps.Broadcaster,
		config:      deps.Config,
	}
}

// Run polls the queue until the context is cancelled. A failed item is
// removed after being marked failed; it never wedges the queue.
func (c *QueueConsumer) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Info().Msg("Classification queue consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Classification queue consumer stopped")
			return
		case <-ticker.C:
			c.drain(ctx)
		}
	}
}

// drain processes queued events until the queue is empty or the context is
// cancelled.
func (c *QueueConsumer) drain(ctx context.Context) {
	for ctx.Err() == nil {
		eventID, err := c.queue.NextPending(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read classification queue")
			return
		}
		if eventID == 0 {
			return
		}

		if _, err := c.ProcessEvent(ctx, eventID); err != nil {
			log.Error().Int64("eventId", eventID).Err(err).
				Msg("Failed to process queued event")
			// Drop the item so one broken event cannot block the queue.
			if rmErr := c.queue.Remove(ctx, eventID); rmErr != nil {
				log.Error().Int64("eventId", eventID).Err(rmErr).
					Msg("Failed to remove queue item")
				return
			}
		}
	}
}

// ProcessEvent runs one event through the classification router and records
// the outcome. Returns a nil decision when the event was not in pending
// state (already claimed, completed, or dismissed); the queue item is still
// consumed.
func (c *QueueConsumer) ProcessEvent(ctx context.Context, eventID int64) (*models.ClassificationDecision, error) {
	claimed, err := c.events.MarkProcessing(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if err := c.queue.Remove(ctx, eventID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	input, err := c.buildInput(ctx, eventID)
	if err != nil {
		return nil, err
	}

	decision := c.classifier.Classify(ctx, input,
		classify.RouterContext{Mode: c.config.ClassifyMode}, c.config.ProviderOrder)

	if decision.OK {
		if err := c.events.SetClassification(ctx, eventID, decision.ProviderID, decision.Result); err != nil {
			return nil, err
		}
		log.Debug().Int64("eventId", eventID).
			Str("provider", decision.ProviderID).
			Str("category", decision.Result.Category).
			Msg("Event classified")
	} else {
		if err := c.events.MarkFailed(ctx, eventID); err != nil {
			return nil, err
		}
		log.Debug().Int64("eventId", eventID).
			Int("attempts", len(decision.Attempts)).
			Msg("Classification exhausted all providers")
	}

	if err := c.queue.Remove(ctx, eventID); err != nil {
		return nil, err
	}

	c.broadcaster.Broadcast(sse.Notification{Type: sse.TypeEventUpdated, EventID: eventID})
	return &decision, nil
}

// buildInput reconstructs the classification input from the stored event.
func (c *QueueConsumer) buildInput(ctx context.Context, eventID int64) (classify.Input, error) {
	event, err := c.events.GetEventByID(ctx, eventID)
	if err != nil {
		return classify.Input{}, err
	}

	input := classify.Input{EventID: eventID}

	if event != nil {
		actx := &models.ActivityContext{
			App:    models.ForegroundApp{Name: event.AppName, BundleID: event.AppBundleID},
			Window: models.ForegroundWindow{Title: event.WindowTitle},
			Key:    event.ContextKey,
		}
		if event.URLCanonical != "" {
			actx.URL = &models.URLMetadata{URLCanonical: event.URLCanonical}
		}
		input.Context = actx
	}

	shots, err := c.events.GetScreenshots(ctx, eventID)
	if err != nil {
		return classify.Input{}, err
	}
	for _, shot := range shots {
		input.Screenshots = append(input.Screenshots, *shot)
	}

	return input, nil
}
