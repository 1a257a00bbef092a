// Package websocket provides surface containers backed by a gorilla/websocket
// connection to a browser viewer, and a reconnecting client for tooling.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/kitchen360/catalog/internal/dispatcher"
	"github.com/kitchen360/catalog/internal/surface"
	"github.com/kitchen360/catalog/pkg/streaming"
)

const (
	sendChSize     = 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 20
)

// queued lists inbound message types handled off the read loop, with their queue
// sizes. Camera movement arrives at frame rate and a dropped update is superseded
// by the next one.
var queued = map[string]int{
	streaming.TypePositionChanged: 64,
}

// ErrClosed is returned by Render once the connection is gone.
var ErrClosed = errors.New("viewer connection closed")

// Conn is a surface.Container over a server-side WebSocket. Outbound envelopes go
// through a single write goroutine; inbound envelopes are dispatched from the read
// loop, so handlers observe them in arrival order. Position updates go through a
// dispatcher queue and keep their order among themselves.
type Conn struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	writerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error

	disp   *dispatcher.Dispatcher
	logger *slog.Logger
}

var _ surface.Container = (*Conn)(nil)

// Upgrader accepts viewer connections.
type Upgrader struct {
	// AllowedOrigins lists Origin header values accepted besides same-host requests.
	// A single "*" accepts any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Accept upgrades the request and starts the write loop. Inbound messages are
// routed through d.
func (u Upgrader) Accept(w http.ResponseWriter, r *http.Request, d *dispatcher.Dispatcher) (*Conn, error) {
	up := ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     u.checkOrigin,
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return NewConn(c, d, logger.With("remote", r.RemoteAddr)), nil
}

func (u Upgrader) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range u.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// NewConn wraps an established connection and starts its write loop.
func NewConn(c *ws.Conn, d *dispatcher.Dispatcher, logger *slog.Logger) *Conn {
	conn := &Conn{
		conn:   c,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		disp:   d,

		writerDone: make(chan struct{}),
		logger:     logger,
	}
	go conn.writeLoop()
	return conn
}

// Attached reports whether the viewer is still connected.
func (c *Conn) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Render queues env for the viewer. It never blocks.
func (c *Conn) Render(env streaming.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		c.logger.Warn("WebSocket send channel full, dropping message", "type", env.Type)
		return fmt.Errorf("send buffer full, dropped %s", env.Type)
	}
}

// Handle routes inbound messages of msgType to h. Position updates are queued and
// delivered in order on their own goroutine; every other type is handled on the
// read loop.
func (c *Conn) Handle(msgType string, h func(streaming.Envelope)) {
	opts := []dispatcher.Option{dispatcher.Logged()}
	if size, ok := queued[msgType]; ok {
		opts = append(opts, dispatcher.Buffered(size))
	}
	c.disp.Register(msgType, func(e dispatcher.Event) (any, error) {
		h(streaming.Envelope{Type: e.Command, Payload: e.Payload})
		return nil, nil
	}, opts...)
}

// Unhandle stops routing msgType.
func (c *Conn) Unhandle(msgType string) {
	c.disp.Unregister(msgType)
}

// Done is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Serve runs the read loop until the viewer disconnects or ctx is cancelled.
// The connection is closed when Serve returns.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				c.logger.Debug("Viewer disconnected")
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.logger.Debug("Non-envelope message received", "raw", truncate(message, 256))
			continue
		}

		if !c.disp.HasHandler(env.Type) {
			c.logger.Debug("No handler for viewer message", "type", env.Type)
			continue
		}
		_, _ = c.disp.Dispatch(dispatcher.Event{
			Command:   env.Type,
			Payload:   env.Payload,
			Timestamp: time.Now(),
		})
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket, pinging the
// viewer in between. On shutdown it flushes what is queued and sends a close frame.
func (c *Conn) writeLoop() {
	defer close(c.writerDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.flush()
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.abort()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.abort()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("WebSocket ping failed", "error", err)
				c.abort()
				return
			}
		}
	}
}

func (c *Conn) flush() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	for {
		select {
		case data := <-c.sendCh:
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		default:
			_ = c.conn.WriteMessage(
				ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			)
			return
		}
	}
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// abort shuts down after a write failure without waiting for the writer.
func (c *Conn) abort() {
	c.markClosed()
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
}

// Close flushes queued messages, sends a close frame and releases the socket.
func (c *Conn) Close() error {
	c.markClosed()
	<-c.writerDone
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
