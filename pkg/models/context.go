// Package models contains domain models for retrace.
package models

import "time"

// Reserved content kinds. The kind tag is an open string; these values get
// dedicated context-key formatting, anything else falls through to the
// generic content key.
const (
	ContentKindYouTubeVideo   = "youtube_video"
	ContentKindYouTubeShort   = "youtube_short"
	ContentKindNetflixTitle   = "netflix_title"
	ContentKindTwitchStream   = "twitch_stream"
	ContentKindTwitchVOD      = "twitch_vod"
	ContentKindSpotifyTrack   = "spotify_track"
	ContentKindSpotifyEpisode = "spotify_episode"
	ContentKindWebPage        = "web_page"
)

// URLMetadata describes the page a browser-like app was showing.
type URLMetadata struct {
	URLCanonical string `json:"url_canonical"`
	Host         string `json:"host"`
	Title        string `json:"title"`
}

// ContentDescriptor identifies a piece of visited content (a video, a track,
// a page). Kind is an open string tag, see the ContentKind constants.
type ContentDescriptor struct {
	Kind         string `json:"kind"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	URLCanonical string `json:"url_canonical,omitempty"`
}

// BackgroundContext is a side-channel activity (e.g. music playback) that is
// not tied to the foreground app.
type BackgroundContext struct {
	Provider  string `json:"provider"`
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	ActionURL string `json:"action_url,omitempty"`
}

// ActivityContext is the enriched best-effort description of what the user
// was doing at capture time. Key deterministically identifies "what this
// moment of activity is about" and joins the formation engine's
// content-addressing decisions within a single capture.
type ActivityContext struct {
	CapturedAt time.Time           `json:"captured_at"`
	App        ForegroundApp       `json:"app"`
	Window     ForegroundWindow    `json:"window"`
	URL        *URLMetadata        `json:"url,omitempty"`
	Content    *ContentDescriptor  `json:"content,omitempty"`
	Provider   string              `json:"provider"`
	Confidence float64             `json:"confidence"`
	Key        string              `json:"key"`
	Background []BackgroundContext `json:"background,omitempty"`
}
