package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"go.uber.org/zap"
)

const (
	subsonicAPIVersion = "1.13.0"
	subsonicClientName = "navicord"
	coverArtSize       = 512
)

// SubsonicClient talks to a Subsonic-compatible server such as Navidrome
type SubsonicClient struct {
	server   string
	username string
	password string
	http     *http.Client
}

// NewSubsonicClient creates a client for server authenticating as username
func NewSubsonicClient(server, username, password string) *SubsonicClient {
	return &SubsonicClient{
		server:   strings.TrimRight(server, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SubsonicClient) endpoint(method string, extra url.Values) string {
	q := url.Values{}
	q.Set("u", c.username)
	q.Set("p", c.password)
	q.Set("f", "json")
	q.Set("v", subsonicAPIVersion)
	q.Set("c", subsonicClientName)
	for k, v := range extra {
		q[k] = v
	}
	return fmt.Sprintf("%s/rest/%s?%s", c.server, method, q.Encode())
}

// CoverArtURL returns the authenticated cover art URL for an album
func (c *SubsonicClient) CoverArtURL(albumID string) string {
	return c.endpoint("getCoverArt", url.Values{
		"id":   {albumID},
		"size": {strconv.Itoa(coverArtSize)},
	})
}

type subsonicEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumID  string `json:"albumId"`
	Duration int    `json:"duration"`
	Username string `json:"username"`
}

type subsonicEnvelope struct {
	Response *struct {
		Status string `json:"status"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		NowPlaying struct {
			Entry []subsonicEntry `json:"entry"`
		} `json:"nowPlaying"`
	} `json:"subsonic-response"`
}

// NowPlaying returns the entry the configured user is playing, or nil
func (c *SubsonicClient) NowPlaying(ctx context.Context) (*Playing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getNowPlaying", nil), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var env subsonicEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode subsonic response: %w", err)
	}
	if env.Response == nil {
		return nil, errors.New("missing subsonic-response")
	}
	if env.Response.Status != "ok" {
		if e := env.Response.Error; e != nil {
			return nil, fmt.Errorf("subsonic error %d: %s", e.Code, e.Message)
		}
		return nil, fmt.Errorf("subsonic status %q", env.Response.Status)
	}

	for _, e := range env.Response.NowPlaying.Entry {
		if e.Username != c.username {
			continue
		}
		return &Playing{
			ID:       e.ID,
			AlbumID:  e.AlbumID,
			Title:    e.Title,
			Artist:   e.Artist,
			Album:    e.Album,
			Duration: time.Duration(e.Duration) * time.Second,
		}, nil
	}

	return nil, nil
}

// SubsonicPoller polls getNowPlaying on each call
type SubsonicPoller struct {
	logger  *zap.Logger
	client  *SubsonicClient
	tracker *Tracker
}

var _ domain.Poller = (*SubsonicPoller)(nil)

// NewSubsonicPoller creates a poller; resolver may be nil
func NewSubsonicPoller(logger *zap.Logger, client *SubsonicClient, resolver domain.ArtworkResolver) *SubsonicPoller {
	return &SubsonicPoller{
		logger:  logger,
		client:  client,
		tracker: NewTracker(logger, resolver),
	}
}

// Poll fetches now-playing state. Failures keep the previous snapshot.
func (p *SubsonicPoller) Poll(ctx context.Context) (domain.Track, bool) {
	playing, err := p.client.NowPlaying(ctx)
	if err != nil {
		p.logger.Warn("Failed to fetch now playing", zap.Error(err))
		return p.tracker.Current(), false
	}
	return p.tracker.Observe(ctx, playing)
}
