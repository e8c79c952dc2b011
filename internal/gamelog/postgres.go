package gamelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS game_summaries (
	game_id        TEXT PRIMARY KEY,
	room_id        TEXT NOT NULL,
	seed           BIGINT NOT NULL,
	betting_rounds INTEGER NOT NULL,
	auction_rounds INTEGER NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT NOT NULL,
	standings      JSONB NOT NULL
)`

// PostgresSink appends summaries to the game_summaries table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and creates the table if needed.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create game_summaries: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) Record(ctx context.Context, s Summary) error {
	standings, err := json.Marshal(s.Standings)
	if err != nil {
		return fmt.Errorf("encode standings: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO game_summaries
			(game_id, room_id, seed, betting_rounds, auction_rounds, started_at, finished_at, duration_ms, standings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO NOTHING`,
		s.GameID, s.RoomID, s.Seed, s.BettingRounds, s.AuctionRounds,
		s.StartedAt, s.FinishedAt, s.Duration.Milliseconds(), standings,
	)
	if err != nil {
		return fmt.Errorf("insert summary %s: %w", s.GameID, err)
	}
	return nil
}

func (p *PostgresSink) Close() {
	p.pool.Close()
}
