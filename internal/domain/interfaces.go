package domain

import (
	"context"
	"time"
)

// Poller produces track snapshots from a now-playing source
//
//go:generate mockgen -destination=mocks/poller_mock.go -package=mocks github.com/genricoloni/navicord/internal/domain Poller
type Poller interface {
	// Poll returns the current snapshot and whether it differs from the previous one.
	// It never fails: on error it returns the previous snapshot and false.
	Poll(ctx context.Context) (Track, bool)
}

// PresenceSink delivers presence updates to the chat gateway
//
//go:generate mockgen -destination=mocks/presence_sink_mock.go -package=mocks github.com/genricoloni/navicord/internal/domain PresenceSink
type PresenceSink interface {
	// Publish sends the activity if a connection is open, otherwise drops it
	Publish(ctx context.Context, activity Activity)

	// Clear removes the presence if a connection is open, otherwise does nothing
	Clear(ctx context.Context)

	// Generation increments every time a new authenticated connection becomes active
	Generation() uint64
}

// ArtworkProvider looks up a cover image URL for a track
type ArtworkProvider interface {
	// Name identifies the provider in logs
	Name() string

	// Lookup returns an image URL, or "" with a nil error when the provider has nothing
	Lookup(ctx context.Context, track Track) (string, error)
}

// ArtworkResolver maps a track to an artwork URL, consulting caches and providers
//
//go:generate mockgen -destination=mocks/artwork_resolver_mock.go -package=mocks github.com/genricoloni/navicord/internal/domain ArtworkResolver
type ArtworkResolver interface {
	// Resolve returns the artwork URL or "" when none could be found
	Resolve(ctx context.Context, track Track) string
}

// Config defines the interface for application configuration
type Config interface {
	// GetPollInterval returns how often the now-playing source is polled
	GetPollInterval() time.Duration

	// GetDisplayMode returns the activity name display mode
	GetDisplayMode() DisplayMode

	// GetClientID returns the gateway application id
	GetClientID() string
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageProcessor defines the interface for in-memory image processing
// This is OS-agnostic and works purely with byte streams
type ImageProcessor interface {
	// Process transforms image data before upload
	// Returns the processed image bytes or an error
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// ImageHost stores an image and returns a public URL for it
type ImageHost interface {
	// Name identifies the host in logs
	Name() string

	// Upload stores the image and returns its public URL
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}
