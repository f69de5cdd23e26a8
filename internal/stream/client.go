// Package stream maintains the persistent websocket connection that webhook
// deliveries are forwarded over, including the acknowledgment protocol the
// endpoint requires and reconnection with bounded exponential backoff.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/github"
	"github.com/hubwatch/hubwatch/internal/logging"
)

// ErrRetriesExhausted is returned by Run when the reconnect budget is spent.
// The daemon keeps serving IPC after this; only the stream is dead.
var ErrRetriesExhausted = errors.New("event stream reconnect attempts exhausted")

// State is the connection state of the client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Flag is the shared connectivity indicator: set by the stream task, read by
// status queries.
type Flag struct {
	connected atomic.Bool
}

// NewFlag creates a connectivity flag, initially false.
func NewFlag() *Flag { return &Flag{} }

// Set records the current connectivity.
func (f *Flag) Set(connected bool) { f.connected.Store(connected) }

// Connected reports the last recorded connectivity.
func (f *Flag) Connected() bool { return f.connected.Load() }

// Config tunes the stream client.
type Config struct {
	// URL is the registration's websocket stream URL.
	URL string
	// Token supplies a fresh bearer token before every connection attempt.
	Token github.TokenSource
	// MaxRetries bounds consecutive reconnect attempts after a connection
	// error. The counter resets on every successful connect.
	MaxRetries int
	// BaseDelay is the first backoff delay; it doubles per attempt up to
	// MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
}

// Client owns one logical stream: it dials, reads, acknowledges, and emits
// parsed events until the stream ends or the retry budget is exhausted.
type Client struct {
	cfg    Config
	conn   *Flag
	events chan Event
	state  atomic.Int32
	dialer *websocket.Dialer
	log    *logrus.Entry
}

// NewClient creates a stream client. Events are delivered on Events() until
// Run returns, at which point the channel is closed.
func NewClient(cfg Config, conn *Flag) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		conn:   conn,
		events: make(chan Event, 16),
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		log:    logging.NewLogger("stream"),
	}
}

// Events returns the channel parsed events are delivered on.
func (c *Client) Events() <-chan Event { return c.events }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Run drives the connect/read/reconnect loop until the stream closes cleanly
// (nil), the context is canceled (ctx.Err()), or the retry budget is spent
// (ErrRetriesExhausted). The events channel is closed on return.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		c.setState(StateConnecting)
		conn, err := c.connect(ctx)
		if err != nil {
			c.conn.Set(false)
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			retries++
			c.log.WithError(err).WithField("attempt", retries).Warn("stream connect failed")
			if wait := c.backoffOrFail(ctx, retries); wait != nil {
				return wait
			}
			continue
		}

		c.setState(StateConnected)
		c.conn.Set(true)
		retries = 0
		c.log.Info("stream connected")

		err = c.readLoop(ctx, conn)
		_ = conn.Close()
		c.conn.Set(false)
		c.setState(StateDisconnected)

		if err == nil {
			c.log.Info("stream closed by remote")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retries++
		c.log.WithError(err).WithField("attempt", retries).Warn("stream connection lost")
		if wait := c.backoffOrFail(ctx, retries); wait != nil {
			return wait
		}
	}
}

// backoffOrFail sleeps for the attempt's backoff delay. It returns a non-nil
// error when the retry budget is exhausted or the context is canceled.
func (c *Client) backoffOrFail(ctx context.Context, attempt int) error {
	if attempt > c.cfg.MaxRetries {
		c.setState(StateFailed)
		c.log.Errorf("giving up after %d reconnect attempts", c.cfg.MaxRetries)
		return ErrRetriesExhausted
	}

	delay := c.cfg.BaseDelay << (attempt - 1)
	if delay > c.cfg.MaxDelay || delay <= 0 {
		delay = c.cfg.MaxDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// connect obtains a fresh token and dials the stream URL.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", c.cfg.URL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// readLoop reads frames until the connection ends. Every inbound frame is
// acknowledged after parsing — successful or not — before the next read;
// skipping the ack silently stalls the remote after its first delivery.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		event, parseErr := parseMessage(data)

		if err := conn.WriteJSON(newAck()); err != nil {
			return fmt.Errorf("send ack: %w", err)
		}

		if parseErr != nil {
			c.log.WithError(parseErr).Warn("dropping unparsable stream message")
			continue
		}

		select {
		case c.events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
