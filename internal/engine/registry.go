package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
)

var ErrRoomExists = errors.New("room already exists")

// RoomSummary is lightweight room metadata for listings.
type RoomSummary struct {
	ID       string      `json:"id"`
	Status   room.Status `json:"status"`
	Players  int         `json:"players"`
	Capacity int         `json:"capacity"`
}

// Registry tracks running sessions by room id. The first session created
// becomes the default room.
type Registry struct {
	base      zerolog.Logger
	logger    zerolog.Logger
	cfg       Config
	opts      []Option
	mu        sync.RWMutex
	sessions  map[string]*Session
	defaultID string
}

// NewRegistry returns an empty registry. Every session it creates uses cfg
// and opts.
func NewRegistry(logger zerolog.Logger, cfg Config, opts ...Option) *Registry {
	return &Registry{
		base:     logger,
		logger:   logger.With().Str("component", "registry").Logger(),
		cfg:      cfg,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for a new room. An empty id picks a fresh room
// code.
func (r *Registry) Create(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		for id == "" || r.sessions[id] != nil {
			id = room.NewCode()
		}
	} else if _, ok := r.sessions[id]; ok {
		return nil, ErrRoomExists
	}

	opts := append([]Option{WithLogger(r.base)}, r.opts...)
	sess, err := NewSession(id, r.cfg, opts...)
	if err != nil {
		return nil, err
	}
	sess.Start()
	r.sessions[id] = sess
	if r.defaultID == "" {
		r.defaultID = id
	}
	r.logger.Info().Str("room", id).Msg("Room created")
	return sess, nil
}

// Get looks up a session by room id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Default returns the main room, if any.
func (r *Registry) Default() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[r.defaultID]
	return sess, ok
}

// Delete stops and forgets a session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	if r.defaultID == id {
		r.defaultID = ""
	}
	r.mu.Unlock()

	if ok {
		sess.Stop()
	}
	return ok
}

// List summarises every room, sorted by id. Rooms that do not answer before
// ctx expires are skipped.
func (r *Registry) List(ctx context.Context) []RoomSummary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	out := make([]RoomSummary, 0, len(sessions))
	for _, sess := range sessions {
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, RoomSummary{ID: snap.ID, Status: snap.Status, Players: len(snap.Players), Capacity: snap.Capacity})
	}
	slices.SortFunc(out, func(a, b RoomSummary) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// StopAll stops every session.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.defaultID = ""
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Stop()
		}()
	}
	wg.Wait()
}
