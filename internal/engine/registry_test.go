package engine

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/partybets/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(testLogger(), testConfig(), WithClock(quartz.NewMock(t)))
	t.Cleanup(reg.StopAll)
	return reg
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	main, err := reg.Create("MAIN")
	require.NoError(t, err)
	assert.Equal(t, "MAIN", main.ID())

	_, err = reg.Create("MAIN")
	require.ErrorIs(t, err, ErrRoomExists)

	other, err := reg.Create("")
	require.NoError(t, err)
	assert.Len(t, other.ID(), 4)
	assert.NotEqual(t, "MAIN", other.ID())

	got, ok := reg.Get(other.ID())
	require.True(t, ok)
	assert.Same(t, other, got)

	def, ok := reg.Default()
	require.True(t, ok)
	assert.Same(t, main, def)

	_, ok = reg.Get("NOPE")
	assert.False(t, ok)
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Capacity = 0
	reg := NewRegistry(testLogger(), cfg)

	_, err := reg.Create("MAIN")
	require.Error(t, err)
	_, ok := reg.Default()
	assert.False(t, ok)
}

func TestRegistryRoomsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reg := newTestRegistry(t)

	a, err := reg.Create("AAAA")
	require.NoError(t, err)
	b, err := reg.Create("BBBB")
	require.NoError(t, err)

	_, _, err = a.Join(ctx, "Alice", 0)
	require.NoError(t, err)
	_, _, err = a.Join(ctx, "Bob", 0)
	require.NoError(t, err)
	_, err = b.AddBots(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, a.StartGame(ctx))

	rooms := reg.List(ctx)
	require.Len(t, rooms, 2)
	assert.Equal(t, RoomSummary{ID: "AAAA", Status: room.StatusPlaying, Players: 2, Capacity: 10}, rooms[0])
	assert.Equal(t, RoomSummary{ID: "BBBB", Status: room.StatusWaiting, Players: 3, Capacity: 10}, rooms[1])
}

func TestRegistryDelete(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reg := newTestRegistry(t)

	sess, err := reg.Create("MAIN")
	require.NoError(t, err)

	assert.True(t, reg.Delete("MAIN"))
	assert.False(t, reg.Delete("MAIN"))

	_, ok := reg.Default()
	assert.False(t, ok)
	_, err = sess.Snapshot(ctx)
	require.ErrorIs(t, err, ErrSessionStopped)

	// The next room created becomes the default.
	next, err := reg.Create("NEXT")
	require.NoError(t, err)
	def, ok := reg.Default()
	require.True(t, ok)
	assert.Same(t, next, def)
}

func TestRegistryStopAll(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reg := newTestRegistry(t)

	var sessions []*Session
	for range 3 {
		sess, err := reg.Create("")
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	reg.StopAll()
	assert.Empty(t, reg.List(ctx))
	for _, sess := range sessions {
		_, err := sess.Snapshot(ctx)
		require.ErrorIs(t, err, ErrSessionStopped)
	}
}
