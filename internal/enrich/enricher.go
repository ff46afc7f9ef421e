// Package enrich turns one foreground snapshot into one best-effort
// activity context, resilient to provider failure.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/retracehq/retrace/internal/privacy"
	"github.com/retracehq/retrace/pkg/models"
)

// NoProvider is the provider id reported when no enrichment succeeded.
const NoProvider = "none"

// DefaultConfidence is assigned when no provider produced an enrichment.
const DefaultConfidence = 0.3

// Enrichment is what a provider derives from a foreground snapshot. URL and
// Content are independent: the best of each may come from different
// providers.
type Enrichment struct {
	URL        *models.URLMetadata
	Content    *models.ContentDescriptor
	Confidence float64
}

// Provider is a pluggable enrichment source.
type Provider interface {
	ID() string
	Supports(snap models.ForegroundSnapshot) bool
	Collect(ctx context.Context, snap models.ForegroundSnapshot) (*Enrichment, error)
}

// BackgroundCollector is the optional capability of a provider that can
// report side-channel activity (e.g. music playback) independent of the
// foreground app.
type BackgroundCollector interface {
	CollectBackground(ctx context.Context) ([]models.BackgroundContext, error)
}

// Enricher runs all applicable providers concurrently and merges their
// outputs by confidence.
type Enricher struct {
	mu        sync.RWMutex
	providers []Provider
	timeout   time.Duration
	inflight  singleflight.Group
}

// New creates an Enricher. Each provider call is bounded by timeout so one
// broken provider cannot stall the whole enrichment.
func New(timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Enricher{timeout: timeout}
}

// Register appends a provider to the registered set. Registration order is
// preserved for deterministic tie-breaking.
func (e *Enricher) Register(p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = append(e.providers, p)
}

// CollectActivityContext builds one ActivityContext from a foreground
// snapshot. A nil snapshot yields a nil context (the event is then formed
// without context). Concurrent calls for an identical snapshot share one
// in-flight enrichment.
func (e *Enricher) CollectActivityContext(ctx context.Context, snap *models.ForegroundSnapshot) *models.ActivityContext {
	if snap == nil {
		return nil
	}

	key := fmt.Sprintf("%s|%s|%d", snap.App.BundleID, snap.Window.Title, snap.CapturedAt.UnixMilli())
	result, _, _ := e.inflight.Do(key, func() (interface{}, error) {
		return e.collect(ctx, *snap), nil
	})
	ac, _ := result.(*models.ActivityContext)
	return ac
}

func (e *Enricher) collect(ctx context.Context, snap models.ForegroundSnapshot) *models.ActivityContext {
	e.mu.RLock()
	providers := make([]Provider, len(e.providers))
	copy(providers, e.providers)
	e.mu.RUnlock()

	type foregroundResult struct {
		providerID string
		enrichment *Enrichment
	}

	var (
		resultMu   sync.Mutex
		foreground []foregroundResult
		background []models.BackgroundContext
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, p := range providers {
		if p.Supports(snap) {
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, e.timeout)
				defer cancel()
				enr, err := p.Collect(callCtx, snap)
				if err != nil {
					log.Debug().Str("provider", p.ID()).Err(err).Msg("Context provider failed")
					return nil
				}
				if enr == nil {
					return nil
				}
				resultMu.Lock()
				foreground = append(foreground, foregroundResult{providerID: p.ID(), enrichment: enr})
				resultMu.Unlock()
				return nil
			})
		}

		// Background collection runs regardless of which app is focused.
		if bg, ok := p.(BackgroundCollector); ok {
			providerID := p.ID()
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, e.timeout)
				defer cancel()
				items, err := bg.CollectBackground(callCtx)
				if err != nil {
					log.Debug().Str("provider", providerID).Err(err).Msg("Background collection failed")
					return nil
				}
				resultMu.Lock()
				background = append(background, items...)
				resultMu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()

	// Best URL and best content are tracked independently; they need not
	// come from the same provider.
	var (
		bestURL         *models.URLMetadata
		bestURLConf     float64
		bestURLProvider string
		bestContent     *models.ContentDescriptor
		bestContentConf float64
		contentProvider string
	)
	for _, fr := range foreground {
		if fr.enrichment.URL != nil && (bestURL == nil || fr.enrichment.Confidence > bestURLConf) {
			bestURL = fr.enrichment.URL
			bestURLConf = fr.enrichment.Confidence
			bestURLProvider = fr.providerID
		}
		if fr.enrichment.Content != nil && (bestContent == nil || fr.enrichment.Confidence > bestContentConf) {
			bestContent = fr.enrichment.Content
			bestContentConf = fr.enrichment.Confidence
			contentProvider = fr.providerID
		}
	}

	primaryProvider := NoProvider
	confidence := DefaultConfidence
	switch {
	case bestContent != nil:
		primaryProvider = contentProvider
		confidence = bestContentConf
	case bestURL != nil:
		primaryProvider = bestURLProvider
		confidence = bestURLConf
	}

	// Don't report the same source twice, once as foreground content and
	// once as background.
	filtered := make([]models.BackgroundContext, 0, len(background))
	for _, bc := range background {
		if bc.Provider == primaryProvider {
			continue
		}
		filtered = append(filtered, bc)
	}

	// Scrub credential-looking fragments before the context leaves this
	// package. Redaction is deterministic so context keys stay stable.
	window := snap.Window
	window.Title = privacy.CleanTitle(window.Title)
	if bestURL != nil {
		scrubbed := *bestURL
		scrubbed.URLCanonical = privacy.RedactURL(bestURL.URLCanonical)
		scrubbed.Title = privacy.CleanTitle(bestURL.Title)
		bestURL = &scrubbed
	}

	return &models.ActivityContext{
		CapturedAt: snap.CapturedAt,
		App:        snap.App,
		Window:     window,
		URL:        bestURL,
		Content:    bestContent,
		Provider:   primaryProvider,
		Confidence: confidence,
		Key:        BuildContextKey(snap.App, window, bestURL, bestContent),
		Background: filtered,
	}
}
