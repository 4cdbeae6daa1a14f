// Package client implements the gateway's Go connection manager: one
// persistent websocket per client instance with authentication, bounded
// auto-reconnect, and a typed event callback table that survives reconnects.
//
// A Client is built to be shared: hand one instance to everything that needs
// the realtime channel rather than creating one per caller.
package client

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// DefaultRetryDelays is the reconnect backoff schedule. One entry per
// attempt; once exhausted the client settles into StateDisconnected until
// Connect is called again.
var DefaultRetryDelays = []time.Duration{
	0,
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
	30 * time.Second,
}

type Options struct {
	// URL of the gateway websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// AccessToken is appended to the handshake; empty connects anonymously.
	AccessToken string
	// RetryDelays overrides the backoff schedule. Mostly for tests.
	RetryDelays []time.Duration
	// HandshakeTimeout bounds a single dial.
	HandshakeTimeout time.Duration
}

func DefaultOptions(wsURL string) Options {
	return Options{
		URL:              wsURL,
		RetryDelays:      DefaultRetryDelays,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client owns the single persistent connection. All state transitions go
// through its mutex; event callbacks are dispatched from the read loop.
type Client struct {
	options   Options
	log       logger.Logger
	callbacks *callbackRegistry

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	inflight    chan struct{}
	inflightErr error
	attempts    int
	retryTimer  *time.Timer
	suppressed  bool

	writeMu sync.Mutex
}

func New(options Options, log logger.Logger) *Client {
	if len(options.RetryDelays) == 0 {
		options.RetryDelays = DefaultRetryDelays
	}
	if options.HandshakeTimeout == 0 {
		options.HandshakeTimeout = 10 * time.Second
	}

	return &Client{
		options:   options,
		log:       log,
		callbacks: newCallbackRegistry(log),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a callback for an event kind. Registrations are additive and
// survive disconnects; the returned subscription removes exactly this
// callback and no other.
func (c *Client) On(kind realtime.EventKind, handler Handler) Subscription {
	return c.callbacks.on(kind, handler)
}

// Off removes a single previously registered callback.
func (c *Client) Off(sub Subscription) {
	c.callbacks.off(sub)
}

// Connect establishes the connection. Calling it while Connected is a no-op;
// calling it while an attempt is in flight waits for that attempt instead of
// starting a second handshake. On failure the client keeps retrying in the
// background on the configured schedule, and Connect returns the first
// attempt's error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}

	if c.inflight != nil {
		done := c.inflight
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
			err := c.inflightErr
			c.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.stopRetryLocked()
	c.state = StateConnecting
	c.attempts = 0
	c.suppressed = false
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	err := c.attempt(ctx)
	c.finishAttempt(done, err)
	return err
}

// Disconnect tears the connection down and suppresses auto-reconnect until
// the next explicit Connect. Registered callbacks are left untouched.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.suppressed = true
	c.attempts = len(c.options.RetryDelays)
	c.stopRetryLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
}

// JoinGroup asks the server for an ad-hoc group membership. The membership is
// not restored automatically after a reconnect; callers that need it back
// must join again once Connected.
func (c *Client) JoinGroup(group string) error {
	return c.send(realtime.ClientMessage{Type: realtime.MsgJoinGroup, Group: group})
}

// LeaveGroup drops an ad-hoc group membership.
func (c *Client) LeaveGroup(group string) error {
	return c.send(realtime.ClientMessage{Type: realtime.MsgLeaveGroup, Group: group})
}

// TestMethod sends the diagnostic echo; the reply arrives as a TestResponse
// event through the callback table.
func (c *Client) TestMethod(message string) error {
	return c.send(realtime.ClientMessage{Type: realtime.MsgTestMethod, Message: message})
}

func (c *Client) send(msg realtime.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// attempt performs one handshake and, on success, installs the connection.
func (c *Client) attempt(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.attempts++
		c.mu.Unlock()
		c.log.Warn("Connection attempt failed", "url", c.options.URL, "error", err)
		return err
	}

	c.mu.Lock()
	if c.suppressed {
		// Disconnect raced the handshake; drop the fresh connection.
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	superseded := c.conn
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	if superseded != nil {
		superseded.Close()
	}

	c.log.Info("Connected", "url", c.options.URL)
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := url.Parse(c.options.URL)
	if err != nil {
		return nil, err
	}

	if c.options.AccessToken != "" {
		query := target.Query()
		query.Set("access_token", c.options.AccessToken)
		target.RawQuery = query.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.options.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (c *Client) finishAttempt(done chan struct{}, err error) {
	c.mu.Lock()
	c.inflightErr = err
	c.inflight = nil
	close(done)
	if err != nil && !c.suppressed {
		c.scheduleRetryLocked()
	}
	c.mu.Unlock()
}

// scheduleRetryLocked arms the next backoff timer, or settles into
// Disconnected once the schedule is exhausted. Caller holds c.mu.
func (c *Client) scheduleRetryLocked() {
	if c.attempts >= len(c.options.RetryDelays) {
		c.state = StateDisconnected
		c.log.Warn("Reconnect attempts exhausted", "attempts", c.attempts)
		return
	}

	delay := c.options.RetryDelays[c.attempts]
	c.retryTimer = time.AfterFunc(delay, c.retry)
}

func (c *Client) retry() {
	c.mu.Lock()
	// A timer whose callback has already fired cannot be stopped by
	// stopRetryLocked, so an explicit Connect may be in flight by the time we
	// get the lock. Yield to it: the attempt slot belongs to whoever holds
	// c.inflight.
	if c.suppressed || c.inflight != nil ||
		(c.state != StateConnecting && c.state != StateReconnecting) {
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	err := c.attempt(context.Background())
	c.finishAttempt(done, err)
}

func (c *Client) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// readLoop decodes incoming envelopes and fans them out through the callback
// table. When the connection drops without an explicit Disconnect, it starts
// the reconnect schedule from the top.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		event, err := realtime.Decode(data)
		if err != nil {
			c.log.Debug("Ignoring undecodable event", "error", err)
			continue
		}

		c.callbacks.emit(event)
	}

	c.mu.Lock()
	if c.conn != conn {
		// A newer connection or an explicit Disconnect already took over.
		c.mu.Unlock()
		return
	}
	c.conn = nil

	if c.suppressed {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	c.log.Warn("Connection lost, reconnecting")
	c.state = StateReconnecting
	c.attempts = 0
	c.scheduleRetryLocked()
	c.mu.Unlock()
}
