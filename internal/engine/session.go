package engine

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"runtime/debug"
	"sync"

	"github.com/coder/quartz"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/gamelog"
	"github.com/lox/partybets/internal/randutil"
	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
)

// ErrSessionStopped is returned by calls made after Stop.
var ErrSessionStopped = errors.New("session stopped")

// Broadcaster delivers events to everyone watching a room. It is called on
// the session goroutine and must not retain payload after returning.
type Broadcaster interface {
	Broadcast(roomID, typ string, payload any)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, string, any) {}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the real clock, typically with quartz.NewMock in tests.
func WithClock(clock quartz.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithRNG replaces the seeded generator derived from Config.Seed.
func WithRNG(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithBroadcaster sets where room events go. The default discards them.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Session) { s.out = b }
}

// WithSink sets where finished game summaries are recorded.
func WithSink(sink gamelog.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithLogger sets the parent logger; the session derives a child per room.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session runs one room. All room state is owned by a single goroutine;
// public methods post a closure to it and wait for the reply.
type Session struct {
	id     string
	clock  quartz.Clock
	rng    *rand.Rand
	out    Broadcaster
	sink   gamelog.Sink
	logger zerolog.Logger

	m      *machine
	inbox  chan func()
	stopCh chan struct{}
	done   chan struct{}
	sinkWG sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSession creates a session for a new empty room. Call Start to run it.
func NewSession(id string, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	strategy, err := resolveStrategy(cfg.BotStrategy)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     id,
		clock:  quartz.NewReal(),
		out:    NopBroadcaster{},
		sink:   gamelog.Discard{},
		logger: zerolog.Nop(),
		inbox:  make(chan func(), 64),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	seed := randutil.Seed(cfg.Seed)
	if s.rng == nil {
		s.rng = randutil.New(seed)
	}

	s.m = &machine{
		cfg:      cfg,
		room:     room.New(id, cfg.Capacity, cfg.InitialStake),
		clock:    s.clock,
		rng:      s.rng,
		seed:     seed,
		out:      s.out,
		sink:     s.sink,
		logger:   s.logger.With().Str("component", "session").Str("room", id).Logger(),
		strategy: strategy,
		post:     s.post,
		sinkWG:   &s.sinkWG,
		bots:     make(botTimers),
	}
	return s, nil
}

// ID returns the room id.
func (s *Session) ID() string { return s.id }

// Start launches the session goroutine.
func (s *Session) Start() {
	s.startOnce.Do(func() { go s.run() })
}

// Stop cancels every timer, ends the session goroutine and waits for
// summaries still being written to the sink.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.startOnce.Do(func() { close(s.done) })
		<-s.done
		s.sinkWG.Wait()
	})
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			s.m.shutdown()
			return
		case fn := <-s.inbox:
			s.exec(fn)
		}
	}
}

// exec runs fn and turns a panic into an abandoned round instead of taking
// the process down.
func (s *Session) exec(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.m.logger.Error().Str("stack", string(debug.Stack())).Msgf("panic in session: %v", r)
		if stage, ok := s.m.currentStage(); ok && s.m.room.Status == room.StatusPlaying {
			s.m.abandon(stage, fmt.Errorf("%w: %v", ErrInvariant, r))
		}
	}()
	fn()
}

// post queues fn from a timer goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.stopCh:
	}
}

// call runs fn on the session goroutine and returns its error.
func (s *Session) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- func() {
		err := ErrInvariant
		defer func() { reply <- err }()
		err = fn()
	}:
	case <-s.stopCh:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats a new player. The returned player includes the reconnect
// token.
func (s *Session) Join(ctx context.Context, name string, buyIn int) (game.Player, room.Snapshot, error) {
	var (
		p    game.Player
		snap room.Snapshot
	)
	err := s.call(ctx, func() error {
		seat, err := s.m.room.Join(name, buyIn)
		if err != nil {
			return err
		}
		p = *seat
		s.m.logger.Info().Str("player", seat.Name).Str("player_id", seat.ID).Msg("Player joined")
		s.m.checkCountdown()
		snap = s.m.snapshot()
		s.m.broadcastSnapshot()
		return nil
	})
	return p, snap, err
}

// Reconnect restores the seat owning token.
func (s *Session) Reconnect(ctx context.Context, token string) (game.Player, room.Snapshot, error) {
	var (
		p    game.Player
		snap room.Snapshot
	)
	err := s.call(ctx, func() error {
		seat, err := s.m.room.Reconnect(token)
		if err != nil {
			return err
		}
		p = *seat
		s.m.logger.Info().Str("player", seat.Name).Msg("Player reconnected")
		s.m.checkCountdown()
		snap = s.m.snapshot()
		s.m.broadcastSnapshot()
		return nil
	})
	return p, snap, err
}

// Disconnect marks a player unreachable. Their seat is kept. conn is the
// Player.Conn returned by the Join or Reconnect that the closing connection
// made; it is a no-op once a newer connection has reclaimed the seat.
func (s *Session) Disconnect(ctx context.Context, playerID string, conn uint64) error {
	return s.call(ctx, func() error { return s.m.disconnect(playerID, conn) })
}

// SetReady updates a player's lobby ready flag.
func (s *Session) SetReady(ctx context.Context, playerID string, ready bool) error {
	return s.call(ctx, func() error {
		if _, err := s.m.room.SetReady(playerID, ready); err != nil {
			return err
		}
		s.m.checkCountdown()
		s.m.broadcastSnapshot()
		return nil
	})
}

// StartGame starts immediately without waiting for ready flags.
func (s *Session) StartGame(ctx context.Context) error {
	return s.call(ctx, s.m.startGame)
}

func (s *Session) SubmitBet(ctx context.Context, playerID string, bet game.Bet) error {
	return s.call(ctx, func() error { return s.m.submitBet(playerID, bet) })
}

func (s *Session) SubmitBid(ctx context.Context, playerID string, amount int) error {
	return s.call(ctx, func() error { return s.m.submitBid(playerID, amount) })
}

// RoundReady acknowledges the current briefing.
func (s *Session) RoundReady(ctx context.Context, playerID string) error {
	return s.call(ctx, func() error { return s.m.roundReady(playerID) })
}

// AddBots seats up to n bots and returns how many were added.
func (s *Session) AddBots(ctx context.Context, n int) (int, error) {
	var added int
	err := s.call(ctx, func() error {
		bots, err := s.m.room.AddBots(n)
		if err != nil {
			return err
		}
		added = len(bots)
		s.m.checkCountdown()
		s.m.broadcastSnapshot()
		return nil
	})
	return added, err
}

// RemoveBots unseats up to n bots and returns how many were removed.
func (s *Session) RemoveBots(ctx context.Context, n int) (int, error) {
	var removed int
	err := s.call(ctx, func() error {
		bots, err := s.m.room.RemoveBots(n)
		if err != nil {
			return err
		}
		removed = len(bots)
		s.m.checkCountdown()
		s.m.broadcastSnapshot()
		return nil
	})
	return removed, err
}

// PlayAgain returns a finished room to the lobby.
func (s *Session) PlayAgain(ctx context.Context) error {
	return s.call(ctx, s.m.playAgain)
}

// Snapshot returns a copy of the room.
func (s *Session) Snapshot(ctx context.Context) (room.Snapshot, error) {
	var snap room.Snapshot
	err := s.call(ctx, func() error {
		snap = s.m.snapshot()
		return nil
	})
	return snap, err
}
