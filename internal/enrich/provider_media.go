// Package enrich turns one foreground snapshot into one best-effort
// activity context, resilient to provider failure.
package enrich

import (
	"context"

	"github.com/retracehq/retrace/pkg/models"
)

// NowPlayingSource reads the system's currently playing media, if any. The
// concrete implementation lives outside this pipeline; tests inject fakes.
type NowPlayingSource interface {
	NowPlaying(ctx context.Context) ([]models.BackgroundContext, error)
}

// MediaProvider reports currently playing media as background context. It
// never enriches the foreground snapshot: a music player is "background"
// even when a browser is foregrounded.
type MediaProvider struct {
	source NowPlayingSource
}

// NewMediaProvider creates a media provider backed by the given now-playing
// source.
func NewMediaProvider(source NowPlayingSource) *MediaProvider {
	return &MediaProvider{source: source}
}

// ID implements Provider.
func (p *MediaProvider) ID() string { return "media" }

// Supports always returns false; this provider only collects in background
// mode.
func (p *MediaProvider) Supports(models.ForegroundSnapshot) bool { return false }

// Collect is never called since Supports is always false.
func (p *MediaProvider) Collect(context.Context, models.ForegroundSnapshot) (*Enrichment, error) {
	return nil, nil
}

// CollectBackground implements BackgroundCollector.
func (p *MediaProvider) CollectBackground(ctx context.Context) ([]models.BackgroundContext, error) {
	items, err := p.source.NowPlaying(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Provider == "" {
			items[i].Provider = p.ID()
		}
	}
	return items, nil
}
