// Package enrich turns one foreground snapshot into one best-effort
// activity context, resilient to provider failure.
package enrich

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/retracehq/retrace/pkg/models"
)

const (
	maxKindLen  = 50
	maxIDLen    = 100
	maxTitleLen = 50
	maxPathLen  = 100
)

// BuildContextKey derives the deterministic string identifying what a moment
// of activity is about. It is a pure function of its inputs: identical
// (app, window, url, content) always yields the identical key.
func BuildContextKey(app models.ForegroundApp, window models.ForegroundWindow, urlMeta *models.URLMetadata, content *models.ContentDescriptor) string {
	if content != nil {
		switch content.Kind {
		case models.ContentKindYouTubeVideo, models.ContentKindYouTubeShort:
			return "youtube:" + content.ID
		case models.ContentKindNetflixTitle:
			return "netflix:" + content.ID
		case models.ContentKindTwitchStream:
			return "twitch:live:" + content.ID
		case models.ContentKindTwitchVOD:
			return "twitch:vod:" + content.ID
		case models.ContentKindSpotifyTrack:
			return "spotify:track:" + content.ID
		case models.ContentKindSpotifyEpisode:
			return "spotify:episode:" + content.ID
		case models.ContentKindWebPage:
			return "web:" + content.ID
		default:
			return fmt.Sprintf("content:%s:%s",
				sanitize(content.Kind, maxKindLen), sanitize(content.ID, maxIDLen))
		}
	}

	if urlMeta != nil {
		path := ""
		if parsed, err := url.Parse(urlMeta.URLCanonical); err == nil {
			path = parsed.Path
		}
		return fmt.Sprintf("web:%s:%s", urlMeta.Host, truncate(path, maxPathLen))
	}

	if window.Title != "" {
		return fmt.Sprintf("app:%s:%s", app.BundleID, sanitize(window.Title, maxTitleLen))
	}

	return "app:" + app.BundleID
}

// sanitize lower-cases, maps non-alphanumerics to underscores, and truncates.
func sanitize(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return truncate(b.String(), max)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
