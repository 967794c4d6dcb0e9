package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultDiscoveryURL = "https://discord.com/api/gateway"
	DefaultAPIBaseURL   = "https://discord.com/api/v9"

	defaultBackoff           = 5 * time.Second
	defaultHeartbeatInterval = 41250 * time.Millisecond // under the server's 45s timeout
	defaultWriteTimeout      = 10 * time.Second
	discoveryTimeout         = 10 * time.Second
	gatewayVersion           = "9"
)

// State is a phase of the session lifecycle
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdentifying
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdentifying:
		return "identifying"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configure a Session. Zero durations fall back to defaults.
type Options struct {
	Token         string
	ApplicationID string
	// Status is the presence status sent with every activity (e.g. "online", "dnd")
	Status            string
	DiscoveryURL      string
	APIBaseURL        string
	Properties        Properties
	Backoff           time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.DiscoveryURL == "" {
		o.DiscoveryURL = DefaultDiscoveryURL
	}
	if o.APIBaseURL == "" {
		o.APIBaseURL = DefaultAPIBaseURL
	}
	if o.Status == "" {
		o.Status = "online"
	}
	if o.Properties == (Properties{}) {
		o.Properties = Properties{OS: "Windows 10", Browser: "Discord Client", Device: "Discord Client"}
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

// Session owns the single gateway connection of the process.
// It reconnects on any failure until Shutdown is called.
// Publish and Clear are safe to call in any state; they are dropped when no
// connection is open and never queued.
type Session struct {
	logger *zap.Logger
	opts   Options
	client *http.Client
	dialer *websocket.Dialer
	assets *AssetResolver

	mu         sync.Mutex
	conn       *websocket.Conn
	connCancel context.CancelFunc
	seq        *int64
	state      State
	stopped    bool
	generation uint64
	cancel     context.CancelFunc

	// writeMu serialises all writes on the current connection
	writeMu sync.Mutex
	wg      sync.WaitGroup
	lost    chan struct{}
}

var _ domain.PresenceSink = (*Session)(nil)

// NewSession creates a stopped-until-started session manager
func NewSession(logger *zap.Logger, opts Options) *Session {
	opts = opts.withDefaults()
	client := &http.Client{Timeout: discoveryTimeout}

	return &Session{
		logger: logger,
		opts:   opts,
		client: client,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: discoveryTimeout,
		},
		assets: NewAssetResolver(logger, client, opts.APIBaseURL, opts.ApplicationID, opts.Token),
		state:  StateDisconnected,
		lost:   make(chan struct{}, 1),
	}
}

// Start launches the supervising loop and returns immediately.
// The loop outlives ctx; only Shutdown stops it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go s.supervise(runCtx)

	s.logger.Info("Gateway session started", zap.String("discovery", s.opts.DiscoveryURL))
	return nil
}

// supervise keeps a connection open, waiting one backoff interval before each attempt
func (s *Session) supervise(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.opts.Backoff)
	defer timer.Stop()

	for {
		if s.isStopped() {
			return
		}

		if s.connected() {
			select {
			case <-ctx.Done():
				return
			case <-s.lost:
			}
			timer.Reset(s.opts.Backoff)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := s.connect(ctx); err != nil {
			s.setState(StateDisconnected)
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("Gateway connection attempt failed",
				zap.Error(err),
				zap.Duration("retryIn", s.opts.Backoff))
		}
		timer.Reset(s.opts.Backoff)
	}
}

// connect discovers the endpoint, dials it and identifies.
// On success the connection becomes the session's only live handle.
func (s *Session) connect(ctx context.Context) error {
	s.setState(StateConnecting)

	endpoint, err := s.discover(ctx)
	if err != nil {
		return transient("discover", err)
	}

	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return transient("dial", err)
	}

	s.setState(StateIdentifying)
	s.logger.Info("Gateway connection opened", zap.String("endpoint", endpoint))

	// The connection is not shared yet, no write lock needed.
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := conn.WriteJSON(identifyFrame(s.opts.Token, s.opts.Properties)); err != nil {
		_ = conn.Close()
		return transient("identify", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	connCtx, cancel := context.WithCancel(ctx)
	s.conn = conn
	s.connCancel = cancel
	// A fresh identify starts a new sequence.
	s.seq = nil
	s.state = StateActive
	s.generation++
	generation := s.generation
	s.wg.Add(2)
	s.mu.Unlock()

	go s.readLoop(conn)
	go s.heartbeatLoop(connCtx, conn)

	s.logger.Info("Gateway session active", zap.Uint64("generation", generation))
	return nil
}

// discover resolves the current gateway endpoint with an unauthenticated GET
func (s *Session) discover(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.DiscoveryURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode discovery response: %w", err)
	}
	if body.URL == "" {
		return "", errors.New("discovery response has no url")
	}

	u, err := url.Parse(body.URL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url %q: %w", body.URL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("v", gatewayVersion)
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// readLoop consumes inbound frames until the connection fails
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.drop(conn, classifyReadError(err))
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed gateway frame", zap.Error(err))
			continue
		}
		s.observe(msg.S)

		switch msg.Op {
		case opDispatch:
			if msg.T != nil {
				s.logger.Debug("Gateway dispatch", zap.String("event", *msg.T))
			}
		case opHello:
			s.logger.Debug("Gateway hello received")
		case opHeartbeatAck:
			s.logger.Debug("Heartbeat acknowledged")
		case opHeartbeat:
			if err := s.heartbeat(conn); err != nil {
				s.drop(conn, err)
				return
			}
		case opReconnect, opInvalidSession:
			s.drop(conn, transient("session", fmt.Errorf("server requested reconnect (op %d)", msg.Op)))
			return
		}
	}
}

// heartbeatLoop runs only while conn is the live connection
func (s *Session) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.heartbeat(conn); err != nil {
				s.drop(conn, err)
				return
			}
		}
	}
}

func (s *Session) heartbeat(conn *websocket.Conn) error {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	if err := s.write(conn, heartbeatFrame(seq)); err != nil {
		return transient("heartbeat", err)
	}
	s.logger.Debug("Heartbeat sent", zap.Int64p("seq", seq))
	return nil
}

// observe advances the stored sequence number; it never moves backwards
func (s *Session) observe(seq *int64) {
	if seq == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == nil || *seq > *s.seq {
		v := *seq
		s.seq = &v
	}
}

func (s *Session) write(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return conn.WriteJSON(v)
}

// farewell clears presence and closes conn under a single hold of writeMu, so a
// concurrent Publish either lands before the clear or fails on the closed conn.
func (s *Session) farewell(conn *websocket.Conn) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.opts.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(clearFrame()); err != nil {
		s.logger.Warn("Failed to clear presence on shutdown", zap.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline)
	_ = conn.Close()
}

// drop releases conn if it is still the live connection and wakes the supervisor
func (s *Session) drop(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = nil
	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if !s.stopped {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	_ = conn.Close()

	if errors.Is(err, ErrAuthenticationFailed) {
		s.logger.Error("Gateway rejected credentials, will keep retrying", zap.Error(err))
	} else {
		s.logger.Warn("Gateway connection lost", zap.Error(err))
	}

	select {
	case s.lost <- struct{}{}:
	default:
	}
}

// liveConn returns the connection to send on, or nil when sends must be dropped
func (s *Session) liveConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	return s.conn
}

// send writes v and treats a failure like any other connection loss
func (s *Session) send(conn *websocket.Conn, v any) {
	if err := s.write(conn, v); err != nil {
		s.drop(conn, transient("send", err))
	}
}

// Publish sends the activity as the current presence
func (s *Session) Publish(ctx context.Context, activity domain.Activity) {
	if s.liveConn() == nil {
		s.logger.Debug("No gateway connection, presence update dropped")
		return
	}

	activity.Assets.LargeImage = s.assets.Resolve(ctx, activity.Assets.LargeImage)

	// Re-read: the connection may have been replaced during image resolution.
	conn := s.liveConn()
	if conn == nil {
		return
	}
	s.send(conn, presenceFrame(&activity, s.opts.Status))

	s.logger.Debug("Presence published", zap.Stringp("details", activity.Details))
}

// Clear removes the current presence
func (s *Session) Clear(ctx context.Context) {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("No gateway connection, presence clear dropped")
		return
	}
	s.send(conn, clearFrame())
}

// Shutdown stops reconnection, clears the presence once and closes the connection.
// Safe to call more than once and from any goroutine.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.state = StateStopped
	conn := s.conn
	s.conn = nil
	connCancel := s.connCancel
	s.connCancel = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		s.farewell(conn)
	}
	if connCancel != nil {
		connCancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Gateway session shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for gateway goroutines: %w", ctx.Err())
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns how many connections have become active so far
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Seq returns the last observed sequence number, if any
func (s *Session) Seq() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return 0, false
	}
	return *s.seq, true
}

func (s *Session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.state = state
	}
}
