package abode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/abode-bridge/internal/events"
)

// Realtime channel defaults.
const (
	DefaultSocketURL    = "wss://my.goabode.com/socket.io/"
	DefaultSocketOrigin = "https://my.goabode.com/"

	// EventDeviceUpdate is the socket event carrying a changed device id.
	EventDeviceUpdate = "com.goabode.device.update"

	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	backoffMultiplier     = 1.5
	socketWriteWait       = 10 * time.Second
	socketHandshakeWait   = 15 * time.Second
)

// Publisher receives realtime channel events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// SocketConfig holds settings for the realtime channel.
type SocketConfig struct {
	// URL is the socket.io endpoint. The engine.io query parameters are added.
	URL string

	// Origin is sent as the Origin header.
	Origin string

	// HostVersion is appended to the User-Agent.
	HostVersion string

	// InitialBackoff and MaxBackoff bound the reconnect delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Dialer overrides the websocket dialer (tests).
	Dialer *websocket.Dialer
}

// Socket is the realtime push channel.
//
// Run keeps a connection open until its context is cancelled. Headers are
// rebuilt from the Session before every dial because tokens rotate.
type Socket struct {
	cfg       SocketConfig
	session   *Session
	publisher Publisher
	logger    Logger
	connected atomic.Bool
}

// NewSocket creates a realtime channel bound to session.
func NewSocket(session *Session, publisher Publisher, cfg SocketConfig) *Socket {
	if cfg.URL == "" {
		cfg.URL = DefaultSocketURL
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultSocketOrigin
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: socketHandshakeWait,
		}
	}

	return &Socket{
		cfg:       cfg,
		session:   session,
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (s *Socket) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// IsConnected reports whether the socket.io namespace is connected.
func (s *Socket) IsConnected() bool {
	return s.connected.Load()
}

// Run connects and reconnects until ctx is cancelled. Connection errors are
// logged, never returned.
func (s *Socket) Run(ctx context.Context) {
	backoff := s.cfg.InitialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		established, err := s.connect(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("abode socket error", "error", err)
		}
		if established {
			backoff = s.cfg.InitialBackoff
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !established {
			backoff = nextBackoff(backoff, s.cfg.MaxBackoff)
		}
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffMultiplier)
	if next > limit {
		return limit
	}
	return next
}

// dialURL adds the engine.io query parameters to the configured URL.
func (s *Socket) dialURL() string {
	u := s.cfg.URL
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "EIO=3&transport=websocket"
}

// headers builds the handshake headers from the current session state.
func (s *Socket) headers() (http.Header, error) {
	tokens := s.session.Tokens()
	if tokens.Session == "" {
		return nil, ErrMissingSession
	}
	if tokens.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	h := http.Header{}
	h.Set("Origin", s.cfg.Origin)
	h.Set("User-Agent", UserAgent(s.cfg.HostVersion))
	h.Set("Cookie", cookieValue(tokens.Session, s.session.InstanceID()))
	h.Set("ABODE-API-KEY", tokens.APIKey)
	if tokens.OAuthToken != "" {
		h.Set("Authorization", "Bearer "+tokens.OAuthToken)
	}
	return h, nil
}

// connect runs one connection to completion. established reports whether
// the namespace connect was seen.
func (s *Socket) connect(ctx context.Context) (established bool, err error) {
	header, err := s.headers()
	if err != nil {
		return false, err
	}

	conn, resp, err := s.cfg.Dialer.DialContext(ctx, s.dialURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake body unused
	}
	if err != nil {
		return false, fmt.Errorf("dialing abode socket: %w", err)
	}

	sc := &socketConn{conn: conn}
	defer sc.close()

	stop := context.AfterFunc(ctx, sc.close)
	defer stop()

	conn.SetReadDeadline(time.Now().Add(socketHandshakeWait)) //nolint:errcheck // best effort
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("reading open packet: %w", err)
	}
	open, err := parseOpenPacket(string(frame))
	if err != nil {
		return false, err
	}
	s.logger.Debug("abode socket opened", "ping_interval", open.interval().String())

	pingDone := make(chan struct{})
	var pingWG sync.WaitGroup
	pingWG.Add(1)
	go func() {
		defer pingWG.Done()
		s.pingLoop(sc, open.interval(), pingDone)
	}()
	defer func() {
		close(pingDone)
		pingWG.Wait()
	}()

	defer func() {
		if established {
			s.connected.Store(false)
			s.logger.Info("abode socket disconnected")
			s.publisher.Publish(events.Event{Kind: events.Disconnected})
		}
	}()

	readWait := open.interval() + open.timeout()
	for {
		conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck // best effort
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return established, nil
			}
			return established, fmt.Errorf("reading abode socket: %w", err)
		}

		done, err := s.handleFrame(sc, string(data), &established)
		if err != nil || done {
			return established, err
		}
	}
}

// handleFrame processes one engine.io text frame.
func (s *Socket) handleFrame(sc *socketConn, frame string, established *bool) (done bool, err error) {
	if frame == "" {
		return false, nil
	}

	switch frame[0] {
	case eioPing:
		return false, sc.write("3" + frame[1:])
	case eioPong, eioNoop:
		return false, nil
	case eioClose:
		return true, nil
	case eioMessage:
	default:
		s.logger.Debug("ignoring abode socket packet", "type", string(frame[0]))
		return false, nil
	}

	if len(frame) < 2 {
		return false, nil
	}

	switch frame[1] {
	case sioConnect:
		if !*established {
			*established = true
			s.connected.Store(true)
			s.logger.Info("abode socket connected")
			s.publisher.Publish(events.Event{Kind: events.Connected})
		}
	case sioDisconnect:
		return true, nil
	case sioError:
		return true, fmt.Errorf("abode socket rejected connection: %s", frame[2:])
	case sioEvent:
		ev, err := parseEventPayload(frame[2:])
		if err != nil {
			s.logger.Warn("malformed abode socket event", "error", err)
			return false, nil
		}
		s.dispatch(ev)
	}
	return false, nil
}

func (s *Socket) dispatch(ev socketEvent) {
	if ev.Name != EventDeviceUpdate {
		return
	}
	id, ok := deviceIDArg(ev.Args)
	if !ok {
		s.logger.Warn("abode device update without device id")
		return
	}
	s.publisher.Publish(events.Event{Kind: events.DeviceUpdated, DeviceID: id})
}

// pingLoop sends engine.io pings until done is closed or a write fails.
func (s *Socket) pingLoop(sc *socketConn, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sc.write(string(eioPing)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("abode socket ping failed", "error", err)
				}
				sc.close()
				return
			}
		}
	}
}

// socketConn serialises writes and makes close idempotent.
type socketConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *socketConn) write(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)) //nolint:errcheck // best effort
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *socketConn) close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // best effort on shutdown
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close() //nolint:errcheck // already closing
	})
}
