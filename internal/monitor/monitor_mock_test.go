package monitor

import (
	"context"
	"fmt"
	"testing"

	"github.com/genricoloni/navicord/internal/domain"
	domainmocks "github.com/genricoloni/navicord/internal/domain/mocks"
	"github.com/genricoloni/navicord/internal/monitor/mocks"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	spotify = "org.mpris.MediaPlayer2.spotify"
	vlc     = "org.mpris.MediaPlayer2.vlc"
)

func songMetadata(id, title string) dbus.Variant {
	return dbus.MakeVariant(map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath(id)),
		"xesam:title":   dbus.MakeVariant(title),
		"xesam:artist":  dbus.MakeVariant([]string{"Led Zeppelin"}),
		"xesam:album":   dbus.MakeVariant("Led Zeppelin IV"),
		"mpris:length":  dbus.MakeVariant(int64(482_000_000)),
	})
}

func newTestPoller(client DBusClient, resolver domain.ArtworkResolver) *MprisPoller {
	p := NewMprisPoller(zap.NewNop(), resolver)
	p.dial = func() (DBusClient, error) { return client, nil }
	return p
}

// TestPoll unifies the player selection scenarios.
func TestPoll(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*mocks.MockDBusClient)
		wantChanged bool
		wantTitle   string
	}{
		{
			name: "Success - First Playing Player Wins",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{
					"org.freedesktop.DBus",
					vlc,
					spotify,
					"com.example.OtherApp",
				}, nil)
				m.EXPECT().GetProperty(vlc, playerPath, statusProp).Return(dbus.MakeVariant("Paused"), nil)
				m.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(songMetadata("/track/1", "Stairway to Heaven"), nil)
			},
			wantChanged: true,
			wantTitle:   "Stairway to Heaven",
		},
		{
			name: "Vanished Player Is Skipped",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{vlc, spotify}, nil)
				m.EXPECT().GetProperty(vlc, playerPath, statusProp).
					Return(dbus.Variant{}, fmt.Errorf("name has no owner"))
				m.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(songMetadata("/track/1", "Black Dog"), nil)
			},
			wantChanged: true,
			wantTitle:   "Black Dog",
		},
		{
			name: "Invalid Data - Metadata is Int not Map",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{spotify}, nil)
				m.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(dbus.MakeVariant(12345), nil)
			},
			wantChanged: false,
		},
		{
			name: "No Players",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus"}, nil)
			},
			wantChanged: false,
		},
		{
			name: "DBus Error - ListNames Fails",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return(nil, fmt.Errorf("connection reset"))
				m.EXPECT().Close().Return(nil)
			},
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(client)

			p := newTestPoller(client, nil)
			track, changed := p.Poll(context.Background())

			if changed != tt.wantChanged {
				t.Errorf("changed: want %v, got %v", tt.wantChanged, changed)
			}
			if track.Title != tt.wantTitle {
				t.Errorf("Title mismatch: want %q, got %q", tt.wantTitle, track.Title)
			}
		})
	}
}

// TestPoll_TrackLifecycle follows one player through a change, a repeat and a stop.
func TestPoll_TrackLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)
	resolver := domainmocks.NewMockArtworkResolver(ctrl)

	client.EXPECT().ListNames().Return([]string{spotify}, nil).Times(4)
	gomock.InOrder(
		client.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(songMetadata("/track/1", "Black Dog"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(songMetadata("/track/1", "Black Dog"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Playing"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, metadataProp).Return(songMetadata("/track/2", "Rock and Roll"), nil),
		client.EXPECT().GetProperty(spotify, playerPath, statusProp).Return(dbus.MakeVariant("Stopped"), nil),
	)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("https://img.example/iv.jpg").Times(2)

	p := newTestPoller(client, resolver)
	ctx := context.Background()

	steps := []struct {
		wantChanged bool
		wantID      string
	}{
		{true, "/track/1"},
		{false, "/track/1"},
		{true, "/track/2"},
		{true, ""},
	}
	for i, step := range steps {
		track, changed := p.Poll(ctx)
		if changed != step.wantChanged {
			t.Errorf("step %d: changed want %v, got %v", i, step.wantChanged, changed)
		}
		if track.ID != step.wantID {
			t.Errorf("step %d: id want %q, got %q", i, step.wantID, track.ID)
		}
		if track.IsPlaying() && track.ArtworkURL != "https://img.example/iv.jpg" {
			t.Errorf("step %d: artwork not resolved", i)
		}
	}
}

// TestPoll_ReconnectsAfterBusError verifies the connection is redialed.
func TestPoll_ReconnectsAfterBusError(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockDBusClient(ctrl)
	second := mocks.NewMockDBusClient(ctrl)

	first.EXPECT().ListNames().Return(nil, fmt.Errorf("broken pipe"))
	first.EXPECT().Close().Return(nil)
	second.EXPECT().ListNames().Return(nil, nil)

	dials := 0
	p := NewMprisPoller(zap.NewNop(), nil)
	p.dial = func() (DBusClient, error) {
		dials++
		if dials == 1 {
			return first, nil
		}
		return second, nil
	}

	p.Poll(context.Background())
	p.Poll(context.Background())

	if dials != 2 {
		t.Errorf("Expected 2 dials, got %d", dials)
	}
}

func TestPoll_DialFailure(t *testing.T) {
	p := NewMprisPoller(zap.NewNop(), nil)
	p.dial = func() (DBusClient, error) { return nil, fmt.Errorf("no session bus") }

	track, changed := p.Poll(context.Background())
	if changed || track.IsPlaying() {
		t.Errorf("Expected no change without a bus, got %+v", track)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close without connection: %v", err)
	}
}
