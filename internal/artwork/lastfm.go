package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultLastFMEndpoint = "https://ws.audioscrobbler.com/2.0/"

	// extralarge in album.getinfo image lists
	lastFMImageIndex = 3
)

var artistSeparators = regexp.MustCompile(`(?i)\s*/\s*|\s*&\s*|\s*,\s*|\s+feat\.?\s+|\s+ft\.?\s+|\s+featuring\s+|\s+and\s+|\s*;\s*`)

// LastFM looks up album covers with album.getinfo
type LastFM struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
	apiKey   string
}

var _ domain.ArtworkProvider = (*LastFM)(nil)

// NewLastFM creates a provider; an empty endpoint uses the public API
func NewLastFM(logger *zap.Logger, endpoint, apiKey string) *LastFM {
	if endpoint == "" {
		endpoint = DefaultLastFMEndpoint
	}
	return &LastFM{
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (l *LastFM) Name() string { return "lastfm" }

// Lookup tries the full artist string first, then each individual artist
// of a collaboration.
func (l *LastFM) Lookup(ctx context.Context, track domain.Track) (string, error) {
	if track.Artist == "" || track.Album == "" {
		return "", nil
	}

	imageURL, err := l.albumImage(ctx, track.Artist, track.Album)
	if err != nil || imageURL != "" {
		return imageURL, err
	}

	for _, artist := range SplitArtists(track.Artist) {
		if artist == track.Artist {
			continue
		}
		imageURL, err := l.albumImage(ctx, artist, track.Album)
		if err != nil {
			return "", err
		}
		if imageURL != "" {
			l.logger.Debug("Cover found with split artist", zap.String("artist", artist))
			return imageURL, nil
		}
	}

	return "", nil
}

type albumInfo struct {
	Album *struct {
		Image []struct {
			Text string `json:"#text"`
			Size string `json:"size"`
		} `json:"image"`
	} `json:"album"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func (l *LastFM) albumImage(ctx context.Context, artist, album string) (string, error) {
	q := url.Values{}
	q.Set("method", "album.getinfo")
	q.Set("api_key", l.apiKey)
	q.Set("artist", artist)
	q.Set("album", album)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	// Unknown albums are reported as 404 with an error body.
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info albumInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode album info: %w", err)
	}
	if info.Album == nil || len(info.Album.Image) <= lastFMImageIndex {
		return "", nil
	}

	return info.Album.Image[lastFMImageIndex].Text, nil
}

// SplitArtists breaks a collaboration credit into individual artist names
func SplitArtists(credit string) []string {
	var artists []string
	for _, a := range artistSeparators.Split(credit, -1) {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}
	return artists
}
