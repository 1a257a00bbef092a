package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/kitchen360/catalog/pkg/streaming"
)

const (
	clientSendChSize = 256
	replyChSize      = 64
	maxReconnect     = 10
	maxBackoff       = 30 * time.Second
)

// Client connects to a catalog server as a viewer. It is used by command line
// tooling and tests. Writes go through a single write goroutine and the connection
// is re-established with exponential backoff when it drops.
type Client struct {
	mu           sync.Mutex
	link         *link
	sendCh       chan []byte
	replyCh      chan streaming.Envelope
	done         chan struct{} // closed on shutdown
	closed       bool
	reconnecting bool

	wsURL string

	// Last open_view message, replayed after a reconnect.
	cachedView []byte

	onMessage func(streaming.Envelope)
	logger    *slog.Logger
	backoff   time.Duration
}

// link is one dialed connection with its own read and write loop. Both loops
// exit once done is closed, before a replacement link starts.
type link struct {
	conn *ws.Conn
	done chan struct{}
}

// Dial connects to rawURL. onMessage, if set, receives every envelope the server
// sends, from the read goroutine.
func Dial(rawURL string, onMessage func(streaming.Envelope), logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		sendCh:    make(chan []byte, clientSendChSize),
		replyCh:   make(chan streaming.Envelope, replyChSize),
		done:      make(chan struct{}),
		wsURL:     rawURL,
		onMessage: onMessage,
		logger:    logger,
		backoff:   time.Second,
	}

	conn, err := c.dialOnce()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.start(conn)
	c.mu.Unlock()

	return c, nil
}

func (c *Client) dialOnce() (*ws.Conn, error) {
	if _, err := url.Parse(c.wsURL); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	conn, _, err := ws.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// start installs conn as the current link and runs its loops. c.mu must be held.
func (c *Client) start(conn *ws.Conn) {
	l := &link{conn: conn, done: make(chan struct{})}
	c.link = l
	go c.writeLoop(l)
	go c.readLoop(l)
}

// drop retires l after an I/O error and starts a reconnect. Only the first loop of
// a link to fail gets here with l still current, so one reconnect runs at a time.
func (c *Client) drop(l *link) {
	c.mu.Lock()
	if c.link != l || c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.link = nil
	c.reconnecting = true
	close(l.done)
	c.mu.Unlock()

	_ = l.conn.Close()
	go c.reconnect()
}

// writeLoop drains sendCh and writes messages to the link's connection. It is the
// only writer of that connection and returns when the link is retired.
func (c *Client) writeLoop(l *link) {
	for {
		select {
		case <-c.done:
			return
		case <-l.done:
			return
		case data := <-c.sendCh:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.drop(l)
				return
			}
			if err := l.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.drop(l)
				return
			}
		}
	}
}

// readLoop delivers server envelopes to onMessage and to waiters in SendAndWait.
func (c *Client) readLoop(l *link) {
	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-l.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.drop(l)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Non-envelope message received", "raw", truncate(message, 256))
			continue
		}

		if c.onMessage != nil {
			c.onMessage(env)
		}
		select {
		case c.replyCh <- env:
		default:
			// nobody waiting; drop the oldest so waiters see recent traffic
			select {
			case <-c.replyCh:
			default:
			}
			select {
			case c.replyCh <- env:
			default:
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. On success it
// replays the last open_view so the server mounts the same view again.
func (c *Client) reconnect() {
	c.mu.Lock()
	backoff := c.backoff
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to catalog server", "attempt", attempt, "backoff", backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		cached := c.cachedView
		c.mu.Unlock()

		// no loop runs on conn yet, so the replay is its only writer
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for open_view replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay open_view after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.start(conn)
		c.mu.Unlock()

		c.logger.Info("Catalog server reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("Reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// Send queues a message for the server. Non-blocking; fails if the queue is full.
func (c *Client) Send(msgType string, payload any) error {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}

	if msgType == streaming.TypeOpenView {
		c.mu.Lock()
		c.cachedView = data
		c.mu.Unlock()
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		c.logger.Warn("WebSocket send channel full, dropping message", "type", msgType)
		return fmt.Errorf("send queue full, dropped %s", msgType)
	}
}

// SendAndWait sends a message and blocks until the server sends an envelope of
// type want or the timeout expires.
func (c *Client) SendAndWait(msgType string, payload any, want string, timeout time.Duration) (streaming.Envelope, error) {
	if err := c.Send(msgType, payload); err != nil {
		return streaming.Envelope{}, err
	}
	return c.Await(want, timeout)
}

// Await blocks until the server sends an envelope of type want.
func (c *Client) Await(want string, timeout time.Duration) (streaming.Envelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-c.replyCh:
			if env.Type == want {
				return env, nil
			}
		case <-timer.C:
			return streaming.Envelope{}, fmt.Errorf("timeout waiting for %q", want)
		case <-c.done:
			return streaming.Envelope{}, fmt.Errorf("connection closed while waiting for %q", want)
		}
	}
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l == nil {
		return nil
	}
	// WriteControl may run alongside the write loop
	_ = l.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return l.conn.Close()
}
