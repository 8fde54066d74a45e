// Package feed provides a reconnecting WebSocket connection that owns one
// upstream subscription and keeps it alive with text PING/PONG heartbeats.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// MessageHandler receives each non-control inbound frame as raw JSON.
// It runs on the connection's read goroutine; keep it cheap (hand off to a channel).
type MessageHandler func(data []byte)

// SubscribeFunc builds the payload sent right after every (re)connect.
type SubscribeFunc func() interface{}

// Connection wraps exactly one logical upstream subscription.
// Lifecycle: Disconnected -> Connecting -> Subscribed, with automatic
// reconnects (bounded exponential backoff) until Disconnect, which is terminal.
type Connection struct {
	cfg       Config
	subscribe SubscribeFunc
	onMessage MessageHandler
	log       *logrus.Entry

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	started bool
	cancel  context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup

	lastParseErrorAt time.Time
}

// New creates a connection. subscribe may be nil for streams that push
// without an explicit subscription message.
func New(cfg Config, subscribe SubscribeFunc, onMessage MessageHandler) *Connection {
	cfg.applyDefaults()
	return &Connection{
		cfg:       cfg,
		subscribe: subscribe,
		onMessage: onMessage,
		log:       cfg.Logger,
		state:     StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop. It is idempotent: calling it while
// Connecting or Subscribed is a no-op. After Disconnect it returns an error.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosing:
		return errors.New("feed: connection is closed")
	case StateConnecting, StateSubscribed:
		return nil
	}
	if c.started {
		return nil
	}
	c.started = true
	c.state = StateConnecting

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Disconnect tears the connection down for good: it cancels the heartbeat,
// removes all reconnect triggers and closes the socket. The connection
// cannot be reused afterwards.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		// Unblocks a pending ReadMessage.
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		c.log.Warn("timed out waiting for feed goroutines to exit")
	}
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	// Closing is terminal; never leave it.
	if c.state != StateClosing {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Connection) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// run drives connect / subscribe / read epochs until the context is
// cancelled or the attempt budget is exhausted.
func (c *Connection) run(ctx context.Context) {
	defer c.wg.Done()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			c.log.Warnf("dial failed (attempt %d/%d): %v", attempts, c.cfg.MaxAttempts, err)
			if attempts >= c.cfg.MaxAttempts {
				c.log.Errorf("🚨 max connect attempts reached (%d), giving up", c.cfg.MaxAttempts)
				c.setState(StateDisconnected)
				return
			}
			if !c.sleepBackoff(ctx, attempts) {
				return
			}
			continue
		}

		c.setConn(conn)
		if err := c.sendSubscribe(conn); err != nil {
			c.log.Warnf("subscribe failed: %v", err)
			_ = conn.Close()
			c.setConn(nil)
			attempts++
			if attempts >= c.cfg.MaxAttempts {
				c.log.Errorf("🚨 max connect attempts reached (%d), giving up", c.cfg.MaxAttempts)
				c.setState(StateDisconnected)
				return
			}
			if !c.sleepBackoff(ctx, attempts) {
				return
			}
			continue
		}

		attempts = 0
		c.setState(StateSubscribed)
		c.log.Infof("✅ subscribed to %s", c.cfg.URL)

		pingDone := make(chan struct{})
		go c.pingLoop(ctx, conn, pingDone)

		readErr := c.readLoop(ctx, conn)
		close(pingDone)
		_ = conn.Close()
		c.setConn(nil)

		if ctx.Err() != nil {
			return
		}
		c.setState(StateDisconnected)
		c.log.Warnf("🔄 connection lost (%v), reconnecting", readErr)

		attempts = 1
		if !c.sleepBackoff(ctx, attempts) {
			return
		}
	}
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	if c.cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(c.cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if c.cfg.ProxyURL != "" {
			return nil, fmt.Errorf("dial %s via proxy %s: %w", c.cfg.URL, c.cfg.ProxyURL, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

func (c *Connection) sendSubscribe(conn *websocket.Conn) error {
	if c.subscribe == nil {
		return nil
	}
	payload := c.subscribe()
	if payload == nil {
		return nil
	}
	return c.writeJSON(conn, payload)
}

func (c *Connection) writeJSON(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(v)
}

func (c *Connection) writeText(conn *websocket.Conn, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// readLoop reads frames until an error or liveness expiry. The read deadline
// is pinned to the last traffic timestamp, so a deadline hit means the
// liveness window truly elapsed with no inbound frames at all.
func (c *Connection) readLoop(ctx context.Context, conn *websocket.Conn) error {
	liveness := time.Duration(c.cfg.LivenessFactor) * c.cfg.PingInterval
	lastTraffic := time.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(lastTraffic.Add(liveness))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				return fmt.Errorf("liveness expired: no traffic in %s", liveness)
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnf("read error: %v", err)
			}
			return err
		}
		lastTraffic = time.Now()
		c.handleFrame(conn, data)
	}
}

// pingLoop sends the text "PING" heartbeat. The server is expected to answer
// with a text "PONG" which counts as traffic for the liveness window.
func (c *Connection) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeText(conn, "PING"); err != nil {
				c.log.Warnf("ping failed: %v", err)
				// Read loop notices the broken socket and reconnects.
				return
			}
		}
	}
}

// handleFrame dispatches one inbound frame. Control text frames are consumed
// here; everything else goes to the owner's handler as raw JSON. Malformed
// payloads are logged (throttled) and dropped without touching connection state.
func (c *Connection) handleFrame(conn *websocket.Conn, data []byte) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		switch string(trimmed) {
		case "PING", "ping":
			if err := c.writeText(conn, "PONG"); err != nil {
				c.log.Warnf("pong reply failed: %v", err)
			}
		case "PONG", "pong":
			// Informational; traffic timestamp already refreshed.
		default:
			c.log.Debugf("ignoring non-JSON text frame: %q", truncateForLog(string(trimmed), 120))
		}
		return
	}

	if !json.Valid(trimmed) {
		if c.lastParseErrorAt.IsZero() || time.Since(c.lastParseErrorAt) > 5*time.Second {
			c.lastParseErrorAt = time.Now()
			c.log.Warnf("dropping malformed payload (len=%d preview=%q)",
				len(trimmed), truncateForLog(string(trimmed), 240))
		}
		return
	}

	if c.onMessage != nil {
		c.onMessage(trimmed)
	}
}

func (c *Connection) sleepBackoff(ctx context.Context, attempts int) bool {
	delay := c.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= c.cfg.BackoffMax {
			delay = c.cfg.BackoffMax
			break
		}
	}
	if delay > c.cfg.BackoffMax {
		delay = c.cfg.BackoffMax
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func truncateForLog(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
