// Package gamelog records finished games. The engine hands every completed
// game to a Sink; nothing in the server reads the log back.
package gamelog

import (
	"context"
	"errors"
	"time"

	"github.com/lox/partybets/internal/game"
	"github.com/rs/zerolog"
)

// Summary is the read-only record of a finished game.
type Summary struct {
	GameID        string          `json:"game_id"`
	RoomID        string          `json:"room_id"`
	Seed          int64           `json:"seed"`
	BettingRounds int             `json:"betting_rounds"`
	AuctionRounds int             `json:"auction_rounds"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Duration      time.Duration   `json:"duration_ns"`
	Standings     []game.Standing `json:"standings"`
}

// Sink stores summaries. Record may be called from any goroutine.
type Sink interface {
	Record(ctx context.Context, s Summary) error
}

// Discard drops every summary.
type Discard struct{}

func (Discard) Record(context.Context, Summary) error { return nil }

// LogSink writes each summary as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "gamelog").Logger()}
}

func (l *LogSink) Record(_ context.Context, s Summary) error {
	ev := l.logger.Info().
		Str("game_id", s.GameID).
		Str("room", s.RoomID).
		Int64("seed", s.Seed).
		Dur("duration", s.Duration)
	if len(s.Standings) > 0 {
		ev = ev.Str("winner", s.Standings[0].Name).Int("winner_chips", s.Standings[0].Chips)
	}
	arr := zerolog.Arr()
	for _, st := range s.Standings {
		arr = arr.Dict(zerolog.Dict().
			Str("player", st.Name).
			Int("rank", st.Rank).
			Int("chips", st.Chips).
			Int("prize", st.Prize))
	}
	ev.Array("standings", arr).Msg("Game completed")
	return nil
}

// Multi fans a summary out to several sinks. Every sink is tried; the
// errors are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, s Summary) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
