package wsbridge

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/meandmytram/pybind-example/internal/binding"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
)

// Server upgrades HTTP requests to WebSocket sessions against one module.
type Server struct {
	mod      *binding.Module
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// A session is dropped when no pong arrives within pongWait. Pings go
	// out every pingPeriod, which must be shorter.
	pongWait   time.Duration
	pingPeriod time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer returns a Server bound to mod. A nil logger discards output.
func NewServer(mod *binding.Module, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		mod:    mod,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Foreign callers are local processes, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pongWait:   defaultPongWait,
		pingPeriod: defaultPongWait * 9 / 10,
		sessions:   make(map[string]*session),
	}
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close sends a close frame to every open session and drops its connection.
// Instances owned by those sessions are released as their read loops exit.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, sess := range sessions {
		sess.writeMu.Lock()
		_ = sess.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		sess.writeMu.Unlock()
		sess.conn.Close()
	}
}

// ServeHTTP upgrades the connection and serves requests until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}

	sess := &session{
		id:         uuid.NewString(),
		mod:        s.mod,
		conn:       conn,
		pongWait:   s.pongWait,
		pingPeriod: s.pingPeriod,
		handles:    make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	sess.logger = s.logger.With(zap.String("session", sess.id))

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.logger.Info("session opened", zap.String("remote", r.RemoteAddr))
	sess.run()

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

// session owns the instances constructed over one connection.
type session struct {
	id     string
	mod    *binding.Module
	conn   *websocket.Conn
	logger *zap.Logger

	pongWait   time.Duration
	pingPeriod time.Duration

	writeMu sync.Mutex

	handlesMu sync.Mutex
	handles   map[string]struct{}

	done chan struct{}
}

func (s *session) run() {
	defer s.close()

	s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	go s.pingLoop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		resp := s.handle(data)
		if err := s.write(resp); err != nil {
			s.logger.Warn("write failed", zap.Error(err))
			return
		}
	}
}

func (s *session) pingLoop() {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *session) write(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	close(s.done)

	s.handlesMu.Lock()
	released := 0
	for handle := range s.handles {
		if err := s.mod.Release(handle); err == nil {
			released++
		}
	}
	s.handles = make(map[string]struct{})
	s.handlesMu.Unlock()

	s.conn.Close()
	s.logger.Info("session closed", zap.Int("released", released))
}

func (s *session) handle(data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return failure("", fmt.Errorf("%w: %v", ErrBadRequest, err))
	}

	log := s.logger.With(zap.String("requestId", req.RequestID), zap.String("type", req.Type))

	resp, err := s.dispatch(req)
	if err != nil {
		log.Debug("request failed", zap.Error(err))
		return failure(req.RequestID, err)
	}
	log.Debug("request served")

	resp.Type = TypeResponse
	resp.RequestID = req.RequestID
	resp.Success = true
	return resp
}

func (s *session) dispatch(req Request) (Response, error) {
	switch req.Type {
	case TypeConstruct:
		handle, err := s.mod.Construct(req.Class)
		if err != nil {
			return Response{}, err
		}
		s.handlesMu.Lock()
		s.handles[handle] = struct{}{}
		s.handlesMu.Unlock()
		return Response{Handle: handle}, nil

	case TypeCall:
		if !s.owns(req.Handle) {
			return Response{}, fmt.Errorf("%w: %s", binding.ErrUnknownHandle, req.Handle)
		}
		return result(s.mod.Call(req.Handle, req.Method, req.Args))

	case TypeRelease:
		s.handlesMu.Lock()
		defer s.handlesMu.Unlock()
		if _, ok := s.handles[req.Handle]; !ok {
			return Response{}, fmt.Errorf("%w: %s", binding.ErrUnknownHandle, req.Handle)
		}
		if err := s.mod.Release(req.Handle); err != nil {
			return Response{}, err
		}
		delete(s.handles, req.Handle)
		return Response{Handle: req.Handle}, nil

	case TypeInvoke:
		return result(s.mod.Invoke(req.Class, req.Method, req.Args))

	case TypeDescribe:
		return Response{Module: s.mod.Name(), Classes: s.mod.Describe()}, nil

	default:
		return Response{}, fmt.Errorf("%w: unknown request type %q", ErrBadRequest, req.Type)
	}
}

func (s *session) owns(handle string) bool {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	_, ok := s.handles[handle]
	return ok
}

func result(value float64, err error) (Response, error) {
	if err != nil {
		return Response{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Response{}, ErrNonFinite
	}
	return Response{Result: &value}, nil
}
