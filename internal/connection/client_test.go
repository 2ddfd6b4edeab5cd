package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// helloServer upgrades every request, greets it with a hello frame for
// session and hands the connection to handler.
func helloServer(t *testing.T, session string, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		if session != "" {
			if err := conn.WriteJSON(Frame{Type: FrameHello, Session: session}); err != nil {
				return
			}
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func connect(t *testing.T, cfg ClientConfig) Client {
	t.Helper()
	c := NewClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_ConnectReadsHello(t *testing.T) {
	server := helloServer(t, "sess-1", drain)
	c := connect(t, ClientConfig{URL: wsURL(server)})

	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if c.Session() != "sess-1" {
		t.Errorf("Session() = %q, want sess-1", c.Session())
	}

	// Connect on a live client is a no-op.
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("second Connect = %v", err)
	}
}

func TestClient_ConnectRequiresHello(t *testing.T) {
	t.Run("wrong first frame", func(t *testing.T) {
		server := helloServer(t, "", func(conn *websocket.Conn) {
			conn.WriteJSON(Frame{Type: FrameResponse})
			drain(conn)
		})

		c := NewClient(ClientConfig{URL: wsURL(server)}, nil)
		defer c.Close()
		err := c.Connect(context.Background())
		if !errors.Is(err, ErrBadFrame) {
			t.Errorf("Connect error = %v, want ErrBadFrame", err)
		}
		if c.IsConnected() {
			t.Error("IsConnected() = true without hello")
		}
	})

	t.Run("silent server", func(t *testing.T) {
		server := helloServer(t, "", drain)

		c := NewClient(ClientConfig{URL: wsURL(server), HandshakeTimeout: 100 * time.Millisecond}, nil)
		defer c.Close()
		start := time.Now()
		if err := c.Connect(context.Background()); err == nil {
			t.Fatal("expected handshake timeout")
		}
		if time.Since(start) > 2*time.Second {
			t.Errorf("Connect took %v", time.Since(start))
		}
	})
}

func TestClient_Send(t *testing.T) {
	received := make(chan Frame, 1)
	server := helloServer(t, "sess-1", func(conn *websocket.Conn) {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		received <- f
		drain(conn)
	})
	c := connect(t, ClientConfig{URL: wsURL(server)})

	err := c.Send(Frame{Type: FrameRequest, Request: &WireRequest{ID: 42, Globalhash: true}})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case f := <-received:
		if f.Type != FrameRequest || f.Request == nil || f.Request.ID != 42 {
			t.Errorf("server got %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestClient_Frames(t *testing.T) {
	server := helloServer(t, "sess-1", func(conn *websocket.Conn) {
		conn.WriteJSON(Frame{Type: FrameResponse, Response: &WireResponse{ID: 7, Code: "ok"}})
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteJSON(Frame{Type: FrameError, Error: "nope"})
		drain(conn)
	})
	c := connect(t, ClientConfig{URL: wsURL(server)})

	var got []ReceivedFrame
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case f := <-c.Frames():
			got = append(got, f)
		case <-timeout:
			t.Fatalf("received %d frames, want 2", len(got))
		}
	}

	if got[0].Type != FrameResponse || got[0].Response == nil || got[0].Response.ID != 7 {
		t.Errorf("frame 0 = %+v", got[0].Frame)
	}
	if got[1].Type != FrameError || got[1].Error != "nope" {
		t.Errorf("frame 1 = %+v, garbage should be dropped", got[1].Frame)
	}
	if got[0].ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestClient_SendNotConnected(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://localhost:12345"}, nil)

	if err := c.Send(Frame{Type: FrameRequest}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send error = %v, want ErrNotConnected", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := helloServer(t, "sess-1", drain)
	c := NewClient(ClientConfig{URL: wsURL(server)}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	server := helloServer(t, "sess-1", drain)
	c := connect(t, ClientConfig{
		URL:          wsURL(server),
		PingTimeout:  100 * time.Millisecond,
		PingInterval: time.Hour,
	})

	select {
	case err := <-c.Errors():
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stale connection not reported")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after stale")
	}
}

func TestClient_ServerGoesAway(t *testing.T) {
	server := helloServer(t, "sess-1", func(conn *websocket.Conn) {})
	c := connect(t, ClientConfig{URL: wsURL(server)})

	select {
	case err := <-c.Errors():
		if errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want a read error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lost connection not reported")
	}
}

func TestClient_AnswersServerPing(t *testing.T) {
	pong := make(chan string, 1)
	server := helloServer(t, "sess-1", func(conn *websocket.Conn) {
		conn.SetPongHandler(func(data string) error {
			pong <- data
			return nil
		})
		conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second))
		drain(conn)
	})
	c := connect(t, ClientConfig{URL: wsURL(server)})

	select {
	case data := <-pong:
		if data != "heartbeat" {
			t.Errorf("pong payload = %q, want heartbeat", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after ping")
	}
}

func TestClient_UserAgent(t *testing.T) {
	got := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Frame{Type: FrameHello, Session: "s"})
		drain(conn)
	}))
	defer server.Close()

	connect(t, ClientConfig{URL: wsURL(server), UserAgent: "geohash-test"})

	if ua := <-got; ua != "geohash-test" {
		t.Errorf("User-Agent = %q, want geohash-test", ua)
	}
}

func TestClient_ConnectError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := NewClient(ClientConfig{URL: wsURL(server)}, nil)
	defer c.Close()
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed dial")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://localhost:12345"}, nil)
	c.Close()

	if err := c.Connect(context.Background()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect error = %v, want ErrAlreadyClosed", err)
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.PingTimeout <= clientCfg.PingInterval {
		t.Errorf("PingTimeout %v must exceed PingInterval %v", clientCfg.PingTimeout, clientCfg.PingInterval)
	}
	if clientCfg.HandshakeTimeout <= 0 || clientCfg.BufferSize <= 0 {
		t.Errorf("client defaults = %+v", clientCfg)
	}

	serverCfg := DefaultServerConfig()
	if serverCfg.Path != "/ws" {
		t.Errorf("Path = %q, want /ws", serverCfg.Path)
	}
	if serverCfg.PongTimeout <= serverCfg.PingInterval {
		t.Errorf("PongTimeout %v must exceed PingInterval %v", serverCfg.PongTimeout, serverCfg.PingInterval)
	}
}
