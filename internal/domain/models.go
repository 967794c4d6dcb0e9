package domain

import "time"

// Track is a normalized snapshot of what is currently playing.
// An empty ID means nothing is playing.
type Track struct {
	// ID of the playing track, the sole de-duplication key
	ID string
	// AlbumID is an opaque album identifier used as artwork cache key
	AlbumID string
	Title   string
	Artist  string
	Album   string
	// StartedAt is the local time the track was first observed
	StartedAt time.Time
	// EndsAt is StartedAt plus the track duration
	EndsAt time.Time
	// ArtworkURL is empty until resolved
	ArtworkURL string
}

// IsPlaying reports whether the snapshot describes a playing track
func (t Track) IsPlaying() bool {
	return t.ID != ""
}

// DisplayMode selects what the presence name shows
type DisplayMode string

const (
	DisplayArtist DisplayMode = "ARTIST"
	DisplayAlbum  DisplayMode = "ALBUM"
	DisplayTrack  DisplayMode = "TRACK"
)

// ActivityTypeListening is the gateway activity type for "Listening to"
const ActivityTypeListening = 2

// Activity is the presence payload sent to the gateway
type Activity struct {
	ApplicationID string             `json:"application_id"`
	Type          int                `json:"type"`
	State         *string            `json:"state"`
	Details       *string            `json:"details"`
	Assets        ActivityAssets     `json:"assets"`
	Timestamps    ActivityTimestamps `json:"timestamps"`
	Name          *string            `json:"name"`
}

// ActivityAssets holds image references for an activity
type ActivityAssets struct {
	// LargeImage is either an external URL or a provider proxy reference ("mp:...")
	LargeImage string `json:"large_image,omitempty"`
}

// ActivityTimestamps are milliseconds since the Unix epoch
type ActivityTimestamps struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}
