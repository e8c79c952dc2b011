package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/protocol"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins limits browser origins for both the HTTP endpoints and
// the WebSocket upgrade. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithCommandTimeout bounds how long a single client command may wait on
// its room.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) { s.commandTimeout = d }
}

// Server represents the HTTP and WebSocket front of the party rooms. It also
// implements engine.Broadcaster, fanning room events out to every
// connection watching that room.
type Server struct {
	logger         zerolog.Logger
	registry       *engine.Registry
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
	origins        []string
	commandTimeout time.Duration

	mu    sync.RWMutex
	rooms map[string]map[*Connection]struct{}
}

// NewServer creates a server. Call SetRegistry before serving requests.
func NewServer(logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		logger:         logger.With().Str("component", "server").Logger(),
		origins:        []string{"*"},
		commandTimeout: 5 * time.Second,
		rooms:          make(map[string]map[*Connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /rooms", s.handleRooms)
	s.mux.HandleFunc("GET /rooms/{id}", s.handleRoom)
	return s
}

// SetRegistry sets the rooms the server serves. The registry's sessions
// should broadcast through this server.
func (s *Server) SetRegistry(registry *engine.Registry) {
	s.registry = registry
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop closes every WebSocket connection. HTTP shutdown does not reach
// hijacked connections.
func (s *Server) Stop() {
	s.mu.RLock()
	var conns []*Connection
	for _, watchers := range s.rooms {
		for c := range watchers {
			conns = append(conns, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// Broadcast sends an event to every connection watching roomID. It never
// blocks; connections that cannot keep up are dropped.
func (s *Server) Broadcast(roomID, typ string, payload any) {
	data, err := protocol.Marshal(typ, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", typ).Msg("Failed to encode event")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for c := range s.rooms[roomID] {
		if c.Send(data) {
			count++
		}
	}
	s.logger.Debug().Str("room", roomID).Str("type", typ).Int("recipients", count).Msg("Broadcast event")
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watchers, ok := s.rooms[c.roomID]
	if !ok {
		watchers = make(map[*Connection]struct{})
		s.rooms[c.roomID] = watchers
	}
	watchers[c] = struct{}{}
	s.logger.Info().Str("room", c.roomID).Int("watchers", len(watchers)).Msg("Client connected")
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	watchers := s.rooms[c.roomID]
	delete(watchers, c)
	if len(watchers) == 0 {
		delete(s.rooms, c.roomID)
	}
	remaining := len(watchers)
	s.mu.Unlock()

	s.logger.Info().Str("room", c.roomID).Int("watchers", remaining).Msg("Client disconnected")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin)
}

// session resolves the room a request addresses; no id means the default
// room.
func (s *Server) session(id string) (*engine.Session, bool) {
	if s.registry == nil {
		return nil, false
	}
	if id == "" {
		return s.registry.Default()
	}
	return s.registry.Get(id)
}

// handleWebSocket upgrades /ws?room=<id>. The connection watches the room
// straight away and becomes a player once it sends join or reconnect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r.URL.Query().Get("room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	c := newConnection(conn, s, sess)
	s.register(c)
	c.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, []engine.RoomSummary{})
		return
	}
	writeJSON(w, s.registry.List(r.Context()))
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r.PathValue("id"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
