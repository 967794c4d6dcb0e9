// Package poller produces track snapshots from now-playing sources.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"go.uber.org/zap"
)

// Playing is what a source reports for the current track before normalization
type Playing struct {
	ID         string
	AlbumID    string
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
	ArtworkURL string
}

func (p Playing) complete() bool {
	return p.ID != "" && p.AlbumID != "" && p.Title != "" && p.Artist != "" && p.Album != ""
}

// Tracker holds the current snapshot and decides when a report is a change.
// Track id equality is the only de-duplication key.
type Tracker struct {
	logger   *zap.Logger
	resolver domain.ArtworkResolver
	now      func() time.Time

	mu      sync.Mutex
	current domain.Track
}

// NewTracker creates a tracker; resolver may be nil to skip artwork lookup
func NewTracker(logger *zap.Logger, resolver domain.ArtworkResolver) *Tracker {
	return &Tracker{
		logger:   logger,
		resolver: resolver,
		now:      time.Now,
	}
}

// Current returns the last snapshot
func (t *Tracker) Current() domain.Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Observe records a report. A nil report means nothing is playing.
// Incomplete reports are ignored.
func (t *Tracker) Observe(ctx context.Context, p *Playing) (domain.Track, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p == nil {
		if !t.current.IsPlaying() {
			return t.current, false
		}
		t.logger.Info("Playback stopped", zap.String("track", t.current.Title))
		t.current = domain.Track{}
		return t.current, true
	}

	if !p.complete() {
		t.logger.Debug("Ignoring incomplete now-playing report", zap.String("id", p.ID))
		return t.current, false
	}

	if p.ID == t.current.ID {
		return t.current, false
	}

	started := t.now()
	next := domain.Track{
		ID:         p.ID,
		AlbumID:    p.AlbumID,
		Title:      p.Title,
		Artist:     p.Artist,
		Album:      p.Album,
		StartedAt:  started,
		EndsAt:     started.Add(p.Duration),
		ArtworkURL: p.ArtworkURL,
	}

	if t.resolver != nil {
		next.ArtworkURL = t.resolver.Resolve(ctx, next)
	}
	t.current = next

	t.logger.Info("Now playing",
		zap.String("title", next.Title),
		zap.String("artist", next.Artist),
		zap.String("album", next.Album),
		zap.Bool("artwork", next.ArtworkURL != ""))

	return t.current, true
}
