package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// recordedFrame is an outbound client frame captured by the fake gateway
type recordedFrame struct {
	Conn int
	Op   int
	D    json.RawMessage
}

// fakeGateway is an in-process discovery endpoint plus websocket gateway
type fakeGateway struct {
	t         *testing.T
	upgrader  websocket.Upgrader
	ws        *httptest.Server
	discovery *httptest.Server
	api       *httptest.Server

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames []recordedFrame
	// discoveryDown makes the discovery endpoint fail
	discoveryDown bool
	assetCalls    int
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	g := &fakeGateway{t: t}

	g.ws = httptest.NewServer(http.HandlerFunc(g.serveWS))
	g.discovery = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		down := g.discoveryDown
		g.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url": "ws" + strings.TrimPrefix(g.ws.URL, "http"),
		})
	}))
	g.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.assetCalls++
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"external_asset_path":"external/abc"}]`))
	}))

	t.Cleanup(func() {
		g.dropAll()
		g.ws.Close()
		g.discovery.Close()
		g.api.Close()
	})

	return g
}

func (g *fakeGateway) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	g.conns = append(g.conns, conn)
	idx := len(g.conns) - 1
	g.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f struct {
			Op int             `json:"op"`
			D  json.RawMessage `json:"d"`
		}
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		g.mu.Lock()
		g.frames = append(g.frames, recordedFrame{Conn: idx, Op: f.Op, D: f.D})
		g.mu.Unlock()
	}
}

// options returns session options pointed at the fake endpoints
func (g *fakeGateway) options() Options {
	return Options{
		Token:             "test-token",
		ApplicationID:     "123",
		Status:            "dnd",
		DiscoveryURL:      g.discovery.URL,
		APIBaseURL:        g.api.URL,
		Backoff:           20 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		WriteTimeout:      time.Second,
	}
}

func (g *fakeGateway) connCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *fakeGateway) lastConn() *websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		return nil
	}
	return g.conns[len(g.conns)-1]
}

// send writes a raw frame to the newest client connection
func (g *fakeGateway) send(raw string) {
	g.t.Helper()
	conn := g.lastConn()
	if conn == nil {
		g.t.Fatal("no client connection to send to")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		g.t.Fatalf("fake gateway write failed: %v", err)
	}
}

// dropLast closes the newest connection from the server side
func (g *fakeGateway) dropLast() {
	if conn := g.lastConn(); conn != nil {
		_ = conn.Close()
	}
}

func (g *fakeGateway) dropAll() {
	g.mu.Lock()
	conns := append([]*websocket.Conn(nil), g.conns...)
	g.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (g *fakeGateway) setDiscoveryDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.discoveryDown = down
}

// framesWithOp returns captured frames with the given opcode
func (g *fakeGateway) framesWithOp(op int) []recordedFrame {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []recordedFrame
	for _, f := range g.frames {
		if f.Op == op {
			out = append(out, f)
		}
	}
	return out
}

func newTestSession(t *testing.T, g *fakeGateway, mutate func(*Options)) *Session {
	t.Helper()

	opts := g.options()
	if mutate != nil {
		mutate(&opts)
	}
	s := NewSession(zap.NewNop(), opts)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}
