package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/pkg/models"
)

type fakeProvider struct {
	id         string
	supports   bool
	enrichment *Enrichment
	err        error
	background []models.BackgroundContext
	bgErr      error
	delay      time.Duration
}

func (p *fakeProvider) ID() string                              { return p.id }
func (p *fakeProvider) Supports(models.ForegroundSnapshot) bool { return p.supports }

func (p *fakeProvider) Collect(ctx context.Context, _ models.ForegroundSnapshot) (*Enrichment, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.enrichment, p.err
}

func (p *fakeProvider) CollectBackground(context.Context) ([]models.BackgroundContext, error) {
	return p.background, p.bgErr
}

func testSnapshot() *models.ForegroundSnapshot {
	return &models.ForegroundSnapshot{
		CapturedAt: time.Now(),
		App:        models.ForegroundApp{Name: "Safari", BundleID: "com.apple.Safari", PID: 42},
		Window:     models.ForegroundWindow{Title: "Example"},
	}
}

func TestEnricher_NilSnapshot(t *testing.T) {
	e := New(time.Second)
	assert.Nil(t, e.CollectActivityContext(context.Background(), nil))
}

func TestEnricher_NoProviders(t *testing.T) {
	e := New(time.Second)

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	assert.Equal(t, NoProvider, ac.Provider)
	assert.Equal(t, DefaultConfidence, ac.Confidence)
	assert.Nil(t, ac.URL)
	assert.Nil(t, ac.Content)
	assert.Equal(t, "app:com.apple.Safari:example", ac.Key)
}

func TestEnricher_BestByConfidence(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{
		id:       "weak",
		supports: true,
		enrichment: &Enrichment{
			URL:        &models.URLMetadata{URLCanonical: "https://weak.example/", Host: "weak.example"},
			Confidence: 0.4,
		},
	})
	e.Register(&fakeProvider{
		id:       "strong",
		supports: true,
		enrichment: &Enrichment{
			URL:        &models.URLMetadata{URLCanonical: "https://strong.example/", Host: "strong.example"},
			Confidence: 0.9,
		},
	})

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	require.NotNil(t, ac.URL)
	assert.Equal(t, "strong.example", ac.URL.Host)
	assert.Equal(t, "strong", ac.Provider)
	assert.Equal(t, 0.9, ac.Confidence)
}

func TestEnricher_URLAndContentIndependent(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{
		id:       "urls",
		supports: true,
		enrichment: &Enrichment{
			URL:        &models.URLMetadata{URLCanonical: "https://example.com/", Host: "example.com"},
			Confidence: 0.9,
		},
	})
	e.Register(&fakeProvider{
		id:       "contents",
		supports: true,
		enrichment: &Enrichment{
			Content:    &models.ContentDescriptor{Kind: models.ContentKindYouTubeVideo, ID: "abc"},
			Confidence: 0.6,
		},
	})

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	require.NotNil(t, ac.URL)
	require.NotNil(t, ac.Content)
	assert.Equal(t, "example.com", ac.URL.Host)
	assert.Equal(t, "abc", ac.Content.ID)

	// Content's provider wins the primary slot.
	assert.Equal(t, "contents", ac.Provider)
	assert.Equal(t, 0.6, ac.Confidence)
	assert.Equal(t, "youtube:abc", ac.Key)
}

func TestEnricher_FailingProviderExcluded(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{id: "broken", supports: true, err: errors.New("boom")})
	e.Register(&fakeProvider{
		id:       "working",
		supports: true,
		enrichment: &Enrichment{
			URL:        &models.URLMetadata{URLCanonical: "https://ok.example/", Host: "ok.example"},
			Confidence: 0.8,
		},
	})

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	require.NotNil(t, ac.URL)
	assert.Equal(t, "working", ac.Provider)
}

func TestEnricher_SlowProviderTimedOut(t *testing.T) {
	e := New(50 * time.Millisecond)
	e.Register(&fakeProvider{
		id:       "slow",
		supports: true,
		delay:    2 * time.Second,
		enrichment: &Enrichment{
			URL:        &models.URLMetadata{URLCanonical: "https://slow.example/", Host: "slow.example"},
			Confidence: 0.9,
		},
	})

	start := time.Now()
	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, ac.URL)
	assert.Equal(t, NoProvider, ac.Provider)
}

func TestEnricher_BackgroundCollected(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{
		id: "media",
		background: []models.BackgroundContext{
			{Provider: "media", Kind: models.ContentKindSpotifyTrack, ID: "track1", Title: "Song"},
		},
	})

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	require.Len(t, ac.Background, 1)
	assert.Equal(t, "track1", ac.Background[0].ID)
}

func TestEnricher_BackgroundFiltersPrimaryProvider(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{
		id:       "dual",
		supports: true,
		enrichment: &Enrichment{
			Content:    &models.ContentDescriptor{Kind: models.ContentKindSpotifyTrack, ID: "track1"},
			Confidence: 0.9,
		},
		background: []models.BackgroundContext{
			{Provider: "dual", Kind: models.ContentKindSpotifyTrack, ID: "track1"},
		},
	})

	ac := e.CollectActivityContext(context.Background(), testSnapshot())
	require.NotNil(t, ac)
	assert.Equal(t, "dual", ac.Provider)
	assert.Empty(t, ac.Background)
}

func TestEnricher_ScrubsCredentials(t *testing.T) {
	e := New(time.Second)
	e.Register(&fakeProvider{
		id:       "browser",
		supports: true,
		enrichment: &Enrichment{
			URL: &models.URLMetadata{
				URLCanonical: "https://example.com/cb?token=abc123",
				Host:         "example.com",
				Title:        "Callback",
			},
			Confidence: 0.9,
		},
	})

	snap := testSnapshot()
	snap.Window.Title = "session 0123456789abcdef0123456789abcdef - Safari"

	ac := e.CollectActivityContext(context.Background(), snap)
	require.NotNil(t, ac)
	assert.Equal(t, "session [redacted] - Safari", ac.Window.Title)
	require.NotNil(t, ac.URL)
	assert.NotContains(t, ac.URL.URLCanonical, "abc123")
	assert.Contains(t, ac.URL.URLCanonical, "token=")
}
