package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/pkg/models"
)

type fakePageSource struct {
	page *models.URLMetadata
	err  error
}

func (s *fakePageSource) CurrentPage(context.Context, int) (*models.URLMetadata, error) {
	return s.page, s.err
}

func TestBrowserProvider_Supports(t *testing.T) {
	p := NewBrowserProvider(&fakePageSource{})

	assert.True(t, p.Supports(models.ForegroundSnapshot{
		App: models.ForegroundApp{BundleID: "com.apple.Safari"},
	}))
	assert.False(t, p.Supports(models.ForegroundSnapshot{
		App: models.ForegroundApp{BundleID: "com.apple.dt.Xcode"},
	}))
}

func TestBrowserProvider_Collect(t *testing.T) {
	page := &models.URLMetadata{
		URLCanonical: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Host:         "youtube.com",
		Title:        "Some Video",
	}
	p := NewBrowserProvider(&fakePageSource{page: page})

	enr, err := p.Collect(context.Background(), models.ForegroundSnapshot{
		App: models.ForegroundApp{BundleID: "com.apple.Safari", PID: 42},
	})
	require.NoError(t, err)
	require.NotNil(t, enr)
	assert.Equal(t, page, enr.URL)
	require.NotNil(t, enr.Content)
	assert.Equal(t, models.ContentKindYouTubeVideo, enr.Content.Kind)
	assert.Equal(t, "dQw4w9WgXcQ", enr.Content.ID)
}

func TestBrowserProvider_CollectNoPage(t *testing.T) {
	p := NewBrowserProvider(&fakePageSource{})

	enr, err := p.Collect(context.Background(), models.ForegroundSnapshot{})
	require.NoError(t, err)
	assert.Nil(t, enr)
}

func TestBrowserProvider_CollectError(t *testing.T) {
	p := NewBrowserProvider(&fakePageSource{err: errors.New("bridge down")})

	_, err := p.Collect(context.Background(), models.ForegroundSnapshot{})
	assert.Error(t, err)
}

func TestDeriveContent(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantKind string
		wantID   string
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", models.ContentKindYouTubeVideo, "dQw4w9WgXcQ"},
		{"youtube short", "https://youtube.com/shorts/abc123", models.ContentKindYouTubeShort, "abc123"},
		{"youtu.be", "https://youtu.be/dQw4w9WgXcQ", models.ContentKindYouTubeVideo, "dQw4w9WgXcQ"},
		{"netflix watch", "https://www.netflix.com/watch/81234567", models.ContentKindNetflixTitle, "81234567"},
		{"twitch vod", "https://www.twitch.tv/videos/123456789", models.ContentKindTwitchVOD, "123456789"},
		{"twitch channel", "https://www.twitch.tv/somechannel", models.ContentKindTwitchStream, "somechannel"},
		{"spotify track", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", models.ContentKindSpotifyTrack, "4uLU6hMCjMI75M1A2tKUQC"},
		{"spotify episode", "https://open.spotify.com/episode/ep123", models.ContentKindSpotifyEpisode, "ep123"},
		{"generic page", "https://example.com/docs/intro", models.ContentKindWebPage, "example_com_docs_intro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := DeriveContent(&models.URLMetadata{URLCanonical: tt.url, Title: "T"})
			require.NotNil(t, content)
			assert.Equal(t, tt.wantKind, content.Kind)
			assert.Equal(t, tt.wantID, content.ID)
		})
	}
}

func TestDeriveContent_Unparseable(t *testing.T) {
	content := DeriveContent(&models.URLMetadata{URLCanonical: "://not-a-url"})
	assert.Nil(t, content)
}
