// Package dashboard serves a live view of sync runs over HTTP and WebSocket.
//
// Clients connect to /ws and receive one JSON message per event:
//
//	{"type":"sync_started","entity":"attendance","direction":"push","timestamp":"..."}
//	{"type":"progress","entity":"attendance","direction":"push","message":"Synced EMP001 2024-1 (1/12)"}
//	{"type":"sync_complete","entity":"attendance","direction":"push","durationMs":812}
//	{"type":"sync_failed","entity":"attendance","direction":"push","error":"failed to sync ..."}
//
// Runs are started with POST /api/sync/{entity}/{push|pull}. GET /api/status
// lists running jobs and GET /health reports liveness.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// MessageType names a dashboard event.
type MessageType string

const (
	// MessageTypeProgress carries one progress line of a running sync.
	MessageTypeProgress MessageType = "progress"

	// MessageTypeSyncStarted is sent when a sync run begins.
	MessageTypeSyncStarted MessageType = "sync_started"

	// MessageTypeSyncComplete is sent when a sync run finishes cleanly.
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeSyncFailed is sent when a sync run returns an error.
	MessageTypeSyncFailed MessageType = "sync_failed"

	// MessageTypeHello is sent to each client right after it connects.
	MessageTypeHello MessageType = "hello"
)

// Message is one event pushed to every subscriber.
type Message struct {
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	Entity     string      `json:"entity,omitempty"`
	Direction  string      `json:"direction,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"durationMs,omitempty"`
}

const (
	outboxSize   = 256
	writeTimeout = 5 * time.Second
)

// subscribers is the set of open WebSocket connections.
type subscribers struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

func (c *subscribers) add(conn *websocket.Conn) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn] = struct{}{}
	return len(c.conns)
}

// remove reports whether conn was still subscribed, and how many remain.
func (c *subscribers) remove(conn *websocket.Conn) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conns[conn]; !ok {
		return false, len(c.conns)
	}
	delete(c.conns, conn)
	return true, len(c.conns)
}

func (c *subscribers) snapshot() []*websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(c.conns))
	for conn := range c.conns {
		out = append(out, conn)
	}
	return out
}

// drain empties the set and returns what it held.
func (c *subscribers) drain() []*websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(c.conns))
	for conn := range c.conns {
		out = append(out, conn)
	}
	c.conns = make(map[*websocket.Conn]struct{})
	return out
}

func (c *subscribers) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Server fans sync events out to WebSocket subscribers and hosts the
// dashboard routes.
type Server struct {
	mux  *http.ServeMux
	subs *subscribers

	port     int
	ln       net.Listener
	httpSrv  *http.Server
	outbox   chan Message
	stopping context.Context
	stop     context.CancelFunc
	running  sync.WaitGroup

	logger logrus.FieldLogger
}

// Config holds server settings.
type Config struct {
	// Port to listen on. Zero picks a free port.
	Port int

	Logger logrus.FieldLogger
}

// DefaultConfig listens on 8080 and logs to the standard logger.
func DefaultConfig() *Config {
	return &Config{Port: 8080, Logger: logrus.StandardLogger()}
}

// NewServer builds the routes and starts delivering broadcasts right away,
// so Handler works on any http.Server. Start is only needed to listen on
// Config.Port. config may be nil.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	stopping, stop := context.WithCancel(context.Background())
	s := &Server{
		mux:      http.NewServeMux(),
		subs:     &subscribers{conns: make(map[*websocket.Conn]struct{})},
		port:     config.Port,
		outbox:   make(chan Message, outboxSize),
		stopping: stopping,
		stop:     stop,
		logger:   logger.WithField("component", "dashboard"),
	}
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	s.running.Add(1)
	go s.deliver()
	return s
}

// Context is cancelled when the server stops. Jobs started through the
// server run under it.
func (s *Server) Context() context.Context {
	return s.stopping
}

// Handle registers an additional route.
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.logger.WithField("addr", ln.Addr().String()).Info("dashboard listening")
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("dashboard server failed")
		}
	}()
	return nil
}

// Stop disconnects every subscriber and shuts the listener down.
func (s *Server) Stop() error {
	s.stop()
	for _, conn := range s.subs.drain() {
		_ = conn.Close(websocket.StatusGoingAway, "dashboard stopping")
	}

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down dashboard: %w", err)
		}
	}

	s.running.Wait()
	return nil
}

// Broadcast queues msg for every subscriber. When the queue is full the
// message is dropped and a warning logged.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case s.outbox <- msg:
	case <-s.stopping.Done():
	default:
		s.logger.WithField("type", msg.Type).Warn("dashboard queue full, message dropped")
	}
}

// deliver writes queued messages to every subscriber until Stop.
func (s *Server) deliver() {
	defer s.running.Done()
	for {
		select {
		case <-s.stopping.Done():
			return
		case msg := <-s.outbox:
			frame, err := json.Marshal(msg)
			if err != nil {
				s.logger.WithError(err).Warn("failed to encode dashboard message")
				continue
			}
			for _, conn := range s.subs.snapshot() {
				if err := s.send(s.stopping, conn, frame); err != nil {
					s.logger.WithError(err).Debug("dropping subscriber")
					s.disconnect(conn)
				}
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	// hello must be the first frame, so it is sent before subscribing.
	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now()})
	if err := s.send(r.Context(), conn, hello); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}

	n := s.subs.add(conn)
	s.logger.WithField("clients", n).Debug("subscriber connected")
	go s.hold(conn)
}

// hold reads (and discards) client frames until the connection ends.
func (s *Server) hold(conn *websocket.Conn) {
	defer s.disconnect(conn)
	for {
		if _, _, err := conn.Read(s.stopping); err != nil {
			return
		}
	}
}

func (s *Server) disconnect(conn *websocket.Conn) {
	removed, n := s.subs.remove(conn)
	if !removed {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.WithField("clients", n).Debug("subscriber disconnected")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Sweldo Sync</title>
</head>
<body>
    <h1>Sweldo Sync Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Status: <a href="/api/status">/api/status</a></p>
    <p>Start a run with <code>POST /api/sync/{entity}/push</code> or <code>/pull</code>.</p>
</body>
</html>`, r.Host)
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return fmt.Sprintf(":%d", s.port)
}

// ClientCount returns how many subscribers are connected.
func (s *Server) ClientCount() int {
	return s.subs.len()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
