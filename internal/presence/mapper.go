// Package presence turns track snapshots into gateway activities.
package presence

import (
	"time"

	"github.com/genricoloni/navicord/internal/domain"
)

// Build maps a snapshot to a "Listening to" activity.
// ARTIST, ALBUM and TRACK pick the activity name from the snapshot; any other
// mode is used verbatim. Empty snapshot fields become null.
func Build(track domain.Track, mode domain.DisplayMode, applicationID string) domain.Activity {
	return domain.Activity{
		ApplicationID: applicationID,
		Type:          domain.ActivityTypeListening,
		State:         optional(track.Album),
		Details:       optional(track.Title),
		Assets:        domain.ActivityAssets{LargeImage: track.ArtworkURL},
		Timestamps: domain.ActivityTimestamps{
			Start: epochMillis(track.StartedAt),
			End:   epochMillis(track.EndsAt),
		},
		Name: optional(displayName(track, mode)),
	}
}

func displayName(track domain.Track, mode domain.DisplayMode) string {
	switch mode {
	case domain.DisplayArtist:
		return track.Artist
	case domain.DisplayAlbum:
		return track.Album
	case domain.DisplayTrack:
		return track.Title
	default:
		return string(mode)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
