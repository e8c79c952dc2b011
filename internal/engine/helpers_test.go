package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/gamelog"
	"github.com/lox/partybets/internal/randutil"
	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BettingRounds = 2
	cfg.AuctionRounds = 2
	cfg.BetTypes = []game.BetType{game.CoinMultiply}
	cfg.BettingTime = 5 * time.Second
	cfg.AuctionTime = 5 * time.Second
	cfg.IntroDelay = 2 * time.Second
	cfg.RevealDelay = 2 * time.Second
	cfg.ResultDelay = 2 * time.Second
	cfg.StartCountdown = 3 * time.Second
	cfg.BotMinDelay = time.Second
	cfg.BotMaxDelay = 2 * time.Second
	cfg.Seed = 1
	return cfg
}

type recordedEvent struct {
	typ     string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(_, typ string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{typ: typ, payload: payload})
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.typ == typ {
			n++
		}
	}
	return n
}

func (r *recorder) payloads(typ string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.typ == typ {
			out = append(out, e.payload)
		}
	}
	return out
}

type sinkRecorder struct {
	ch chan gamelog.Summary
}

func (s *sinkRecorder) Record(_ context.Context, summary gamelog.Summary) error {
	s.ch <- summary
	return nil
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	clock *quartz.Mock
	sess  *Session
	out   *recorder
	sink  *sinkRecorder
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		t:     t,
		ctx:   ctx,
		clock: quartz.NewMock(t),
		out:   &recorder{},
		sink:  &sinkRecorder{ch: make(chan gamelog.Summary, 4)},
	}
	sess, err := NewSession("TEST", cfg,
		WithClock(h.clock),
		WithBroadcaster(h.out),
		WithSink(h.sink),
		WithLogger(testLogger()),
		WithRNG(randutil.New(cfg.Seed)),
	)
	require.NoError(t, err)
	sess.Start()
	t.Cleanup(sess.Stop)
	h.sess = sess
	return h
}

// snapshot doubles as a barrier: everything queued before it has run.
func (h *harness) snapshot() room.Snapshot {
	h.t.Helper()
	snap, err := h.sess.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return snap
}

// do runs fn on the session goroutine.
func (h *harness) do(fn func(m *machine)) {
	h.t.Helper()
	require.NoError(h.t, h.sess.call(h.ctx, func() error {
		fn(h.sess.m)
		return nil
	}))
}

func (h *harness) join(name string) game.Player {
	h.t.Helper()
	p, _, err := h.sess.Join(h.ctx, name, 0)
	require.NoError(h.t, err)
	return p
}

// advance moves the clock forward by d one timer at a time, letting the
// session process each fire before looking for the next timer.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	for {
		h.snapshot()
		next, ok := h.clock.Peek()
		if !ok || next > d {
			if d > 0 {
				h.clock.Advance(d).MustWait(h.ctx)
			}
			h.snapshot()
			return
		}
		h.clock.Advance(next).MustWait(h.ctx)
		d -= next
	}
}

// advanceUntil fires timers until the game reaches phase, failing if that
// takes longer than limit.
func (h *harness) advanceUntil(phase game.Phase, limit time.Duration) room.Snapshot {
	h.t.Helper()
	var elapsed time.Duration
	for {
		snap := h.snapshot()
		if snap.Game != nil && snap.Game.Phase == phase {
			return snap
		}
		next, ok := h.clock.Peek()
		require.True(h.t, ok, "no timer pending while waiting for %s (at %v)", phase, phaseOf(snap))
		elapsed += next
		require.LessOrEqual(h.t, elapsed, limit, "did not reach %s in %v", phase, limit)
		h.clock.Advance(next).MustWait(h.ctx)
	}
}

func (h *harness) phase() game.Phase {
	return phaseOf(h.snapshot())
}

func phaseOf(snap room.Snapshot) game.Phase {
	if snap.Game == nil {
		return ""
	}
	return snap.Game.Phase
}

func (h *harness) summary() gamelog.Summary {
	h.t.Helper()
	select {
	case s := <-h.sink.ch:
		return s
	case <-h.ctx.Done():
		h.t.Fatal("no summary recorded")
		return gamelog.Summary{}
	}
}

func totalChips(snap room.Snapshot) int {
	total := 0
	for _, p := range snap.Players {
		total += p.Chips
	}
	return total
}

func sumDeltas(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
