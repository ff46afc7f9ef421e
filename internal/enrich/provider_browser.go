// Package enrich turns one foreground snapshot into one best-effort
// activity context, resilient to provider failure.
package enrich

import (
	"context"
	"net/url"
	"strings"

	"github.com/retracehq/retrace/pkg/models"
)

// knownBrowsers maps bundle ids the browser provider can read pages from.
var knownBrowsers = map[string]bool{
	"com.apple.Safari":          true,
	"com.google.Chrome":         true,
	"org.mozilla.firefox":       true,
	"com.microsoft.edgemac":     true,
	"company.thebrowser.Browser": true,
	"com.brave.Browser":         true,
}

// PageSource reads the current page of a browser process. The concrete
// implementation lives outside this pipeline (an accessibility bridge on
// macOS); tests inject fakes.
type PageSource interface {
	CurrentPage(ctx context.Context, pid int) (*models.URLMetadata, error)
}

// BrowserProvider enriches captures of known browsers with URL metadata and
// a content descriptor derived from the visited URL.
type BrowserProvider struct {
	pages PageSource
}

// NewBrowserProvider creates a browser provider backed by the given page
// source.
func NewBrowserProvider(pages PageSource) *BrowserProvider {
	return &BrowserProvider{pages: pages}
}

// ID implements Provider.
func (p *BrowserProvider) ID() string { return "browser" }

// Supports reports whether the snapshot's foreground app is a known browser.
func (p *BrowserProvider) Supports(snap models.ForegroundSnapshot) bool {
	return knownBrowsers[snap.App.BundleID]
}

// Collect reads the current page and derives content from the URL.
func (p *BrowserProvider) Collect(ctx context.Context, snap models.ForegroundSnapshot) (*Enrichment, error) {
	page, err := p.pages.CurrentPage(ctx, snap.App.PID)
	if err != nil {
		return nil, err
	}
	if page == nil || page.URLCanonical == "" {
		return nil, nil
	}

	enr := &Enrichment{
		URL:        page,
		Content:    DeriveContent(page),
		Confidence: 0.9,
	}
	return enr, nil
}

// DeriveContent maps a visited URL to a content descriptor. Recognised
// hosts get a reserved kind; everything else becomes a generic web_page
// whose id is the sanitized host and path.
func DeriveContent(page *models.URLMetadata) *models.ContentDescriptor {
	parsed, err := url.Parse(page.URLCanonical)
	if err != nil {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := parsed.Path

	switch host {
	case "youtube.com", "m.youtube.com":
		if id := parsed.Query().Get("v"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindYouTubeVideo, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
		if id := pathSegmentAfter(path, "shorts"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindYouTubeShort, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
	case "youtu.be":
		if id := strings.Trim(path, "/"); id != "" && !strings.Contains(id, "/") {
			return &models.ContentDescriptor{Kind: models.ContentKindYouTubeVideo, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
	case "netflix.com":
		if id := pathSegmentAfter(path, "watch"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindNetflixTitle, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
	case "twitch.tv":
		if id := pathSegmentAfter(path, "videos"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindTwitchVOD, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
		if channel := strings.Trim(path, "/"); channel != "" && !strings.Contains(channel, "/") {
			return &models.ContentDescriptor{Kind: models.ContentKindTwitchStream, ID: channel, Title: page.Title, URLCanonical: page.URLCanonical}
		}
	case "open.spotify.com":
		if id := pathSegmentAfter(path, "track"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindSpotifyTrack, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
		if id := pathSegmentAfter(path, "episode"); id != "" {
			return &models.ContentDescriptor{Kind: models.ContentKindSpotifyEpisode, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
		}
	}

	id := sanitize(host+path, maxIDLen)
	if id == "" {
		return nil
	}
	return &models.ContentDescriptor{Kind: models.ContentKindWebPage, ID: id, Title: page.Title, URLCanonical: page.URLCanonical}
}

// pathSegmentAfter returns the path segment following the named one, e.g.
// pathSegmentAfter("/watch/81234567", "watch") == "81234567".
func pathSegmentAfter(path, name string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == name && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
