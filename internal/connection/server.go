package connection

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
	"github.com/rickgao/geohash/internal/stock"
)

// Submitter queues a request and calls handler with its response.
// *stock.Service implements it.
type Submitter interface {
	Submit(req model.Request, handler stock.Handler) error
}

// Server accepts WebSocket sessions and answers their requests.
type Server struct {
	cfg      ServerConfig
	service  Submitter
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig, service Submitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServerConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &Server{
		cfg:     cfg,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:   logger.With("component", "ws"),
		sessions: make(map[uuid.UUID]*session),
	}
}

// Path returns the upgrade path.
func (s *Server) Path() string { return s.cfg.Path }

// Mux returns a ServeMux with the server mounted on its path.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	return mux
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session and waits for their goroutines.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.close()
	}
	s.wg.Wait()
}

// ServeHTTP upgrades the connection and runs the session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sess := &session{
		id:     uuid.New(),
		conn:   conn,
		cfg:    s.cfg,
		send:   make(chan []byte, s.cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	sess.logger = s.logger.With("session", sess.id.String())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.SessionOpened()
	sess.logger.Info("session opened", "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		metrics.SessionClosed()
		sess.logger.Info("session closed")
		s.wg.Done()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()

	sess.enqueue(Frame{Type: FrameHello, Session: sess.id.String()})
	sess.readLoop(s.service)
	sess.close()
	<-writerDone
}

type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	cfg    ServerConfig
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	})
}

// enqueue queues a frame for the writer. A full buffer drops the session.
func (s *session) enqueue(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("failed to encode frame", "type", f.Type, "err", err)
		return
	}
	select {
	case <-s.done:
	case s.send <- data:
	default:
		s.logger.Warn("send buffer full, closing session")
		s.close()
	}
}

func (s *session) readLoop(service Submitter) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.isClosed() {
				s.logger.Debug("read failed", "err", err)
			}
			return
		}
		s.handle(service, data)
	}
}

func (s *session) handle(service Submitter, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.enqueue(Frame{Type: FrameError, Error: "undecodable frame"})
		return
	}
	if f.Type != FrameRequest || f.Request == nil {
		s.enqueue(Frame{Type: FrameError, Error: "expected request frame"})
		return
	}

	req, err := f.Request.Decode()
	if err != nil {
		s.enqueue(Frame{Type: FrameError, Error: err.Error()})
		return
	}

	err = service.Submit(req, func(resp model.Response) {
		s.enqueue(Frame{Type: FrameResponse, Response: EncodeResponse(resp)})
	})
	if err != nil {
		s.logger.Warn("submit failed", "id", req.ID, "err", err)
		code := stock.CodeOf(err)
		s.enqueue(Frame{Type: FrameResponse, Response: EncodeResponse(model.Response{
			RequestID: req.ID,
			Flags:     req.Flags,
			Code:      code,
			Date:      req.Date,
			Graticule: req.Graticule,
		})})
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "err", err)
				s.close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "err", err)
				s.close()
				return
			}
		}
	}
}

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
