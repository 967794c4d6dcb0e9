// Package monitor reads now-playing information from local media players over
// the D-Bus MPRIS interface.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"github.com/genricoloni/navicord/internal/poller"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	playerPrefix   = "org.mpris.MediaPlayer2."
	playerPath     = "/org/mpris/MediaPlayer2"
	metadataProp   = "org.mpris.MediaPlayer2.Player.Metadata"
	statusProp     = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	statusPlaying  = "Playing"
	albumKeyPrefix = "mpris:"
)

// MprisPoller reports the track of the first player in the Playing state
type MprisPoller struct {
	logger  *zap.Logger
	tracker *poller.Tracker
	dial    func() (DBusClient, error)

	mu   sync.Mutex
	conn DBusClient
}

var _ domain.Poller = (*MprisPoller)(nil)

// NewMprisPoller creates a poller that connects to the session bus on first use
func NewMprisPoller(logger *zap.Logger, resolver domain.ArtworkResolver) *MprisPoller {
	return &MprisPoller{
		logger:  logger,
		tracker: poller.NewTracker(logger, resolver),
		dial: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Poll queries the bus once. Bus errors keep the previous snapshot and drop
// the connection so the next poll reconnects.
func (m *MprisPoller) Poll(ctx context.Context) (domain.Track, bool) {
	playing, err := m.nowPlaying()
	if err != nil {
		m.logger.Warn("MPRIS poll failed", zap.Error(err))
		m.reset()
		return m.tracker.Current(), false
	}
	return m.tracker.Observe(ctx, playing)
}

// Close releases the bus connection
func (m *MprisPoller) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *MprisPoller) client() (DBusClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := m.dial()
	if err != nil {
		return nil, fmt.Errorf("session bus connection failed: %w", err)
	}
	m.conn = conn
	m.logger.Info("Connected to session bus")
	return conn, nil
}

func (m *MprisPoller) reset() {
	if err := m.Close(); err != nil {
		m.logger.Debug("Failed to close D-Bus connection", zap.Error(err))
	}
}

// nowPlaying returns nil when no player is playing
func (m *MprisPoller) nowPlaying() (*poller.Playing, error) {
	conn, err := m.client()
	if err != nil {
		return nil, err
	}

	names, err := conn.ListNames()
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	for _, name := range names {
		if !strings.HasPrefix(name, playerPrefix) {
			continue
		}

		playing, err := m.readPlayer(conn, name)
		if err != nil {
			// Players come and go between ListNames and the property read.
			m.logger.Debug("Skipping player", zap.String("player", name), zap.Error(err))
			continue
		}
		if playing != nil {
			return playing, nil
		}
	}
	return nil, nil
}

func (m *MprisPoller) readPlayer(conn DBusClient, name string) (*poller.Playing, error) {
	statusVariant, err := conn.GetProperty(name, playerPath, statusProp)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback status: %w", err)
	}
	status, ok := statusVariant.Value().(string)
	if !ok {
		return nil, fmt.Errorf("invalid playback status format")
	}
	if status != statusPlaying {
		return nil, nil
	}

	variant, err := conn.GetProperty(name, playerPath, metadataProp)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	// Some players return nil or unexpected types while idle
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, nil
	}

	return m.parseMetadata(name, metadata), nil
}

// parseMetadata converts MPRIS metadata to a now-playing report
func (m *MprisPoller) parseMetadata(player string, metadata map[string]dbus.Variant) *poller.Playing {
	p := &poller.Playing{
		Title: stringValue(metadata, "xesam:title"),
		Album: stringValue(metadata, "xesam:album"),
	}

	if artistVar, ok := metadata["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			if len(artists) > 0 {
				p.Artist = artists[0]
			}
		case string:
			p.Artist = artists
		default:
			m.logger.Debug("Unexpected artist type in metadata",
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}
	}

	if idVar, ok := metadata["mpris:trackid"]; ok {
		switch id := idVar.Value().(type) {
		case dbus.ObjectPath:
			p.ID = string(id)
		case string:
			p.ID = id
		}
	}
	// Track ids are optional in MPRIS; fall back to the visible fields.
	if p.ID == "" || p.ID == "/org/mpris/MediaPlayer2/TrackList/NoTrack" {
		p.ID = player + "|" + p.Artist + "|" + p.Album + "|" + p.Title
	}

	if p.Artist != "" && p.Album != "" {
		p.AlbumID = albumKeyPrefix + strings.ToLower(p.Artist+"/"+p.Album)
	}

	if lengthVar, ok := metadata["mpris:length"]; ok {
		switch length := lengthVar.Value().(type) {
		case int64:
			p.Duration = time.Duration(length) * time.Microsecond
		case uint64:
			p.Duration = time.Duration(length) * time.Microsecond
		case int32:
			p.Duration = time.Duration(length) * time.Microsecond
		}
	}

	// Only remote art is reachable by the gateway; file:// urls are resolved elsewhere
	art := stringValue(metadata, "mpris:artUrl")
	if strings.HasPrefix(art, "https://") || strings.HasPrefix(art, "http://") {
		p.ArtworkURL = art
	}

	return p
}

func stringValue(metadata map[string]dbus.Variant, key string) string {
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}
