package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"
)

// ErrNotConnected is returned by Emit while the connection is down. Events
// emitted during a gap are lost; the relay keeps no replay log.
var ErrNotConnected = errors.New("relay: not connected")

// HandlerFunc receives the raw payload of one event.
type HandlerFunc func(data json.RawMessage)

// Conn is the agent side of the relay: a lifecycle-managed connection handle
// that dials with exponential backoff, redials automatically when the link
// drops, and dispatches inbound events to registered handlers. Callers own
// the handle and must Close it when the owning component shuts down.
type Conn struct {
	url    string
	logger *slog.Logger

	mu       sync.RWMutex
	sock     *ws.Conn
	handlers map[string][]HandlerFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the relay at url, blocking until the first connection
// succeeds or ctx is cancelled. Reconnection after that is automatic.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Conn, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &Conn{
		url:      url,
		logger:   logger,
		handlers: make(map[string][]HandlerFunc),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	sock, err := c.dial(ctx)
	if err != nil {
		cancel()
		close(c.done)
		return nil, err
	}
	c.setSock(sock)

	go c.run(runCtx, sock)
	return c, nil
}

// On registers a handler for an event name. Multiple handlers per event are
// allowed; they run sequentially on the read goroutine.
func (c *Conn) On(event string, fn HandlerFunc) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], fn)
	c.mu.Unlock()
}

// Emit sends one event through the relay.
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	ev, err := NewEvent(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.RLock()
	sock := c.sock
	c.mu.RUnlock()
	if sock == nil {
		return ErrNotConnected
	}
	return sock.Write(ctx, ws.MessageText, data)
}

// Close tears the connection down and stops the reconnect loop.
func (c *Conn) Close() {
	c.cancel()
	c.mu.Lock()
	if c.sock != nil {
		c.sock.Close(ws.StatusNormalClosure, "client shutdown")
		c.sock = nil
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Conn) run(ctx context.Context, sock *ws.Conn) {
	defer close(c.done)

	for {
		c.readLoop(ctx, sock)
		c.setSock(nil)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("relay connection lost, reconnecting", "url", c.url)

		var err error
		sock, err = c.dial(ctx)
		if err != nil {
			return
		}
		c.setSock(sock)
		c.logger.Info("relay reconnected", "url", c.url)
	}
}

func (c *Conn) dial(ctx context.Context) (*ws.Conn, error) {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(15*time.Second, b)
	b = retry.WithJitter(250*time.Millisecond, b)

	var sock *ws.Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, _, err := ws.Dial(ctx, c.url, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		sock = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sock, nil
}

func (c *Conn) setSock(sock *ws.Conn) {
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
}

func (c *Conn) readLoop(ctx context.Context, sock *ws.Conn) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Event == "" {
			c.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}

		c.mu.RLock()
		handlers := c.handlers[ev.Event]
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(ev.Data)
		}
	}
}
