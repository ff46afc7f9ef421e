// Package classify routes capture classification through pluggable
// providers in priority order with graceful fallback.
package classify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/retracehq/retrace/pkg/models"
)

// ModeOff is the global kill switch: the router returns an empty decision
// without touching any provider.
const ModeOff = "off"

// Input is what a provider classifies: the formed event plus its enriched
// context and screenshot references.
type Input struct {
	EventID     int64
	Context     *models.ActivityContext
	Screenshots []models.EventScreenshot
}

// RouterContext carries per-call routing configuration.
type RouterContext struct {
	Mode string
}

// Provider is an interchangeable classification strategy.
type Provider interface {
	ID() string
	IsAvailable(ctx context.Context, rctx RouterContext) (bool, error)
	Classify(ctx context.Context, input Input, rctx RouterContext) (*models.ClassificationResult, error)
}

// AvailabilityStatus reports one provider's availability probe.
type AvailabilityStatus struct {
	ProviderID string `json:"provider_id"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
}

// Router tries providers strictly in the configured order, one at a time,
// recording every attempt with its latency.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider

	attempts metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	meter := otel.Meter("github.com/retracehq/retrace/internal/classify")
	attempts, err := meter.Int64Counter("classify.attempts",
		metric.WithDescription("Classification provider attempts"))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create attempts counter")
	}
	latency, err := meter.Float64Histogram("classify.latency",
		metric.WithDescription("Classification provider latency"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create latency histogram")
	}

	return &Router{
		providers: make(map[string]Provider),
		attempts:  attempts,
		latency:   latency,
	}
}

// Register adds a provider. Priority is determined by the order argument of
// Classify, not by registration order.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Availability probes each provider id in order. Unregistered ids and probe
// errors are reported as unavailable with a reason; no other side effects.
func (r *Router) Availability(ctx context.Context, order []string, rctx RouterContext) []AvailabilityStatus {
	statuses := make([]AvailabilityStatus, 0, len(order))
	for _, id := range order {
		r.mu.RLock()
		p, ok := r.providers[id]
		r.mu.RUnlock()
		if !ok {
			statuses = append(statuses, AvailabilityStatus{ProviderID: id, Reason: "not registered"})
			continue
		}
		available, err := p.IsAvailable(ctx, rctx)
		if err != nil {
			statuses = append(statuses, AvailabilityStatus{ProviderID: id, Reason: err.Error()})
			continue
		}
		statuses = append(statuses, AvailabilityStatus{ProviderID: id, Available: available})
	}
	return statuses
}

// Classify tries providers in order and returns on the first non-empty
// result. This is a strict fallback chain, not a race: providers run one at
// a time and each attempt's latency is recorded individually.
func (r *Router) Classify(ctx context.Context, input Input, rctx RouterContext, order []string) models.ClassificationDecision {
	if rctx.Mode == ModeOff {
		return models.ClassificationDecision{Attempts: []models.ProviderAttempt{}}
	}

	attempts := make([]models.ProviderAttempt, 0, len(order))

	for _, id := range order {
		r.mu.RLock()
		p, ok := r.providers[id]
		r.mu.RUnlock()
		if !ok {
			attempts = append(attempts, models.ProviderAttempt{
				ProviderID: id,
				Error:      "not registered",
			})
			r.record(ctx, id, false, 0)
			continue
		}

		available, err := p.IsAvailable(ctx, rctx)
		if err != nil {
			attempts = append(attempts, models.ProviderAttempt{
				ProviderID: id,
				Error:      err.Error(),
			})
			r.record(ctx, id, false, 0)
			continue
		}
		if !available {
			attempts = append(attempts, models.ProviderAttempt{ProviderID: id})
			r.record(ctx, id, false, 0)
			continue
		}

		start := time.Now()
		result, err := p.Classify(ctx, input, rctx)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			log.Debug().Str("provider", id).Int64("latencyMs", elapsed).Err(err).
				Msg("Classification provider failed")
			attempts = append(attempts, models.ProviderAttempt{
				ProviderID: id,
				Available:  true,
				LatencyMs:  elapsed,
				Error:      err.Error(),
			})
			r.record(ctx, id, true, elapsed)
			continue
		}
		if result.Empty() {
			attempts = append(attempts, models.ProviderAttempt{
				ProviderID: id,
				Available:  true,
				LatencyMs:  elapsed,
				Error:      "empty result",
			})
			r.record(ctx, id, true, elapsed)
			continue
		}

		attempts = append(attempts, models.ProviderAttempt{
			ProviderID: id,
			Available:  true,
			LatencyMs:  elapsed,
		})
		r.record(ctx, id, true, elapsed)

		return models.ClassificationDecision{
			OK:         true,
			ProviderID: id,
			Result:     result,
			Attempts:   attempts,
		}
	}

	return models.ClassificationDecision{Attempts: attempts}
}

func (r *Router) record(ctx context.Context, providerID string, available bool, latencyMs int64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", providerID),
		attribute.Bool("available", available),
	)
	if r.attempts != nil {
		r.attempts.Add(ctx, 1, attrs)
	}
	if r.latency != nil && available {
		r.latency.Record(ctx, float64(latencyMs), attrs)
	}
}
