package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// TestAppGraphValidity verifies that the dependency graph is resolvable.
// This test will fail if you forget an fx.Provide for a required interface.
func TestAppGraphValidity(t *testing.T) {
	// fx.ValidateApp checks that there are no missing or cyclic dependencies
	err := fx.ValidateApp(
		AppOptions,
		fx.Supply(cliFlags{}),
	)

	if err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}
}

// TestNewLogger specifically verifies the logger configuration
func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, err := newLogger(cliFlags{Debug: debug})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger == nil {
			t.Fatal("Logger should not be nil")
		}
		// We can verify it's a real logger by writing something (should not panic)
		logger.Info("Test logger initialization")
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()

	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("debug"))
	assert.Error(t, cmd.Args(cmd, []string{"unexpected"}))
}

// gatewayRecorder accepts websocket connections and records presence frames
type gatewayRecorder struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	presence []json.RawMessage
}

func (g *gatewayRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var f struct {
			Op int             `json:"op"`
			D  json.RawMessage `json:"d"`
		}
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Op == 3 {
			g.mu.Lock()
			g.presence = append(g.presence, f.D)
			g.mu.Unlock()
		}
	}
}

func (g *gatewayRecorder) frames() []json.RawMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]json.RawMessage(nil), g.presence...)
}

// TestEndToEndStartup runs the whole graph against fake Subsonic and gateway servers.
// We use fx.NopLogger to avoid cluttering test output
func TestEndToEndStartup(t *testing.T) {
	subsonic := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subsonic-response":{"status":"ok","nowPlaying":{"entry":[
			{"id":"t1","title":"Song","artist":"Artist","album":"Album","albumId":"al-1","duration":200,"username":"alice"}]}}}`))
	}))
	defer subsonic.Close()

	recorder := &gatewayRecorder{}
	ws := httptest.NewServer(recorder)
	defer ws.Close()

	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "ws" + strings.TrimPrefix(ws.URL, "http")})
	}))
	defer discovery.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"external_asset_path":"external/placeholder"}]`))
	}))
	defer api.Close()

	t.Setenv("NAVICORD_SUBSONIC_SERVER", subsonic.URL)
	t.Setenv("NAVICORD_SUBSONIC_USERNAME", "alice")
	t.Setenv("NAVICORD_SUBSONIC_PASSWORD", "secret")
	t.Setenv("NAVICORD_DISCORD_TOKEN", "token")
	t.Setenv("NAVICORD_DISCORD_CLIENT_ID", "1234")
	t.Setenv("NAVICORD_DISCORD_DISCOVERY_URL", discovery.URL)
	t.Setenv("NAVICORD_DISCORD_API_URL", api.URL)
	t.Setenv("NAVICORD_DISCORD_RECONNECT_BACKOFF", "10ms")
	t.Setenv("NAVICORD_POLL_INTERVAL", "10ms")
	t.Setenv("NAVICORD_CACHE_PATH", filepath.Join(t.TempDir(), "images.json"))

	app := fx.New(
		AppOptions,
		fx.Supply(cliFlags{}),
		fx.NopLogger, // Silence Fx logs during tests
	)
	require.NoError(t, app.Err())

	// Verify that the app can start without errors
	require.NoError(t, app.Start(t.Context()), "App failed to start")

	require.Eventually(t, func() bool { return len(recorder.frames()) >= 1 }, 3*time.Second, 10*time.Millisecond,
		"presence was never published")

	var published struct {
		Activities []struct {
			Details string `json:"details"`
			Name    string `json:"name"`
			Assets  struct {
				LargeImage string `json:"large_image"`
			} `json:"assets"`
		} `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(recorder.frames()[0], &published))
	require.Len(t, published.Activities, 1)
	assert.Equal(t, "Song", published.Activities[0].Details)
	assert.Equal(t, "Artist", published.Activities[0].Name)
	assert.Equal(t, "mp:external/placeholder", published.Activities[0].Assets.LargeImage)

	// Verify that the app can stop without errors
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Stop(stopCtx), "App failed to stop")

	require.Eventually(t, func() bool {
		frames := recorder.frames()
		return string(frames[len(frames)-1]) == `{"since":null,"activities":[null],"status":null,"afk":null}`
	}, time.Second, 10*time.Millisecond, "shutdown clears presence")
}
