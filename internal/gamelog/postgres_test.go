package gamelog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lox/partybets/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("partybets"),
		postgres.WithUsername("partybets"),
		postgres.WithPassword("partybets"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sink, err := NewPostgresSink(ctx, dsn)
	require.NoError(t, err)
	defer sink.Close()

	s := testSummary()
	require.NoError(t, sink.Record(ctx, s))
	require.NoError(t, sink.Record(ctx, s), "recording the same game twice is a no-op")

	var (
		count      int
		durationMS int64
		raw        []byte
	)
	require.NoError(t, sink.pool.QueryRow(ctx, `SELECT count(*) FROM game_summaries`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, sink.pool.QueryRow(ctx,
		`SELECT duration_ms, standings FROM game_summaries WHERE game_id = $1`, s.GameID,
	).Scan(&durationMS, &raw))
	assert.Equal(t, s.Duration.Milliseconds(), durationMS)

	var standings []game.Standing
	require.NoError(t, json.Unmarshal(raw, &standings))
	assert.Equal(t, s.Standings, standings)
}
