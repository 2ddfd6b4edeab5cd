package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one WebSocket connection to a lookup server.
type Client interface {
	// Connect dials the server and waits for its hello frame.
	Connect(ctx context.Context) error

	// Close sends a close frame and releases the connection.
	Close() error

	// Send writes one frame.
	Send(f Frame) error

	// Frames delivers the frames that follow the hello, in order.
	Frames() <-chan ReceivedFrame

	// Errors receives at most one error when the connection is lost.
	Errors() <-chan error

	IsConnected() bool

	// Session returns the ID from the server's hello, or "" before Connect.
	Session() string
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	frames chan ReceivedFrame
	errs   chan error
	done   chan struct{}

	writeMu sync.Mutex

	mu        sync.RWMutex
	conn      *websocket.Conn
	session   string
	connected bool
	closed    bool
}

// NewClient creates a Client. Zero fields in cfg take their defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &client{
		cfg:    cfg,
		logger: logger.With("component", "ws_client"),
		frames: make(chan ReceivedFrame, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed, connected := c.closed, c.connected
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if connected {
		return nil
	}

	header := http.Header{}
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	hello, err := c.awaitHello(conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.session = hello.Session
	c.connected = true
	c.mu.Unlock()

	// Any traffic from the server keeps the connection alive.
	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		return c.extendDeadline(conn)
	})
	conn.SetPingHandler(func(data string) error {
		c.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	lost := make(chan struct{})
	go c.readLoop(conn, lost)
	go c.pingLoop(conn, lost)

	c.logger.Debug("connected", "url", c.cfg.URL, "session", hello.Session)
	return nil
}

func (c *client) awaitHello(conn *websocket.Conn) (Frame, error) {
	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		return Frame{}, fmt.Errorf("read hello: %w", err)
	}
	if f.Type != FrameHello || f.Session == "" {
		return Frame{}, fmt.Errorf("%w: want hello, got %q", ErrBadFrame, f.Type)
	}
	return f, nil
}

func (c *client) extendDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn == nil {
		return nil
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (c *client) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Frames() <-chan ReceivedFrame { return c.frames }

func (c *client) Errors() <-chan error { return c.errs }

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *client) readLoop(conn *websocket.Conn, lost chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(lost)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fail(readError(err))
			}
			return
		}
		c.extendDeadline(conn)

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("dropping undecodable frame", "err", err)
			continue
		}

		select {
		case c.frames <- ReceivedFrame{Frame: f, ReceivedAt: time.Now()}:
		case <-c.done:
			return
		default:
			c.logger.Warn("frame buffer full, dropping frame", "type", f.Type)
		}
	}
}

func (c *client) pingLoop(conn *websocket.Conn, lost <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-lost:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("ping failed", "err", err)
				return
			}
		}
	}
}

func (c *client) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// readError marks read deadline expiry as a stale connection.
func readError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrStaleConnection, err)
	}
	return err
}
