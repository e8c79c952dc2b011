package room

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lox/partybets/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 2, 1000)

	alice, err := r.Join("  Alice ", 50)
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, 1000, alice.Chips)
	assert.Equal(t, 50, alice.BuyIn)
	assert.Equal(t, Avatars[0], alice.Avatar)
	assert.Len(t, alice.Token, 64)
	assert.True(t, alice.Connected)

	bob, err := r.Join("Alice", 0)
	require.NoError(t, err, "duplicate names are allowed")
	assert.NotEqual(t, alice.ID, bob.ID)
	assert.NotEqual(t, alice.Token, bob.Token)
	assert.Equal(t, Avatars[1], bob.Avatar)

	_, err = r.Join("Carol", 0)
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRejections(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)

	_, err := r.Join("   ", 0)
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = r.Join(strings.Repeat("x", MaxNameLength+1), 0)
	require.ErrorIs(t, err, ErrNameTooLong)

	r.Status = StatusPlaying
	_, err = r.Join("Dave", 0)
	require.ErrorIs(t, err, ErrNotWaiting)
}

func TestReconnectByTokenOnly(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	alice, err := r.Join("Alice", 0)
	require.NoError(t, err)

	_, err = r.Disconnect(alice.ID, alice.Conn)
	require.NoError(t, err)
	assert.False(t, alice.Connected)

	_, err = r.Reconnect("Alice")
	require.ErrorIs(t, err, ErrUnknownToken)
	_, err = r.Reconnect("")
	require.ErrorIs(t, err, ErrUnknownToken)

	r.Status = StatusPlaying
	p, err := r.Reconnect(alice.Token)
	require.NoError(t, err)
	assert.Same(t, alice, p)
	assert.True(t, p.Connected)
}

func TestDisconnectFromReplacedConnectionIsIgnored(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	alice, err := r.Join("Alice", 0)
	require.NoError(t, err)
	first := alice.Conn

	p, err := r.Reconnect(alice.Token)
	require.NoError(t, err)
	assert.Greater(t, p.Conn, first)

	_, err = r.Disconnect(alice.ID, first)
	require.ErrorIs(t, err, ErrStaleConnection)
	assert.True(t, alice.Connected)

	_, err = r.Disconnect(alice.ID, p.Conn)
	require.NoError(t, err)
	assert.False(t, alice.Connected)
}

func TestDisconnectDropsReadyInLobby(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	alice, _ := r.Join("Alice", 0)
	_, err := r.SetReady(alice.ID, true)
	require.NoError(t, err)
	assert.True(t, r.AllHumansReady())

	_, err = r.Disconnect(alice.ID, alice.Conn)
	require.NoError(t, err)
	assert.False(t, alice.Ready)
	assert.False(t, r.AllHumansReady(), "nobody connected")

	_, err = r.Disconnect("nobody", 1)
	require.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestBots(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	_, err := r.Join("Alice", 0)
	require.NoError(t, err)

	added, err := r.AddBots(5)
	require.NoError(t, err)
	require.Len(t, added, 3, "limited by free seats")
	for _, b := range added {
		assert.True(t, b.Bot)
		assert.True(t, b.Ready)
		assert.True(t, b.Connected)
		assert.Empty(t, b.Token)
	}
	_, err = r.AddBots(1)
	require.ErrorIs(t, err, ErrRoomFull)

	removed, err := r.RemoveBots(2)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, added[2].ID, removed[0].ID)
	assert.Len(t, r.Players, 2)
	assert.Len(t, r.Humans(), 1)
}

func TestReset(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	alice, _ := r.Join("Alice", 0)
	bots, _ := r.AddBots(1)

	r.Status = StatusFinished
	r.State = &game.GameState{Phase: game.PhaseFinalResult, Leaderboard: []game.Standing{{PlayerID: alice.ID}}}
	r.Shields[alice.ID] = true
	alice.Chips = 12
	alice.Ready = true
	bots[0].Chips = 3000

	r.Reset()
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Nil(t, r.State)
	assert.Empty(t, r.Shields)
	assert.Equal(t, 1000, alice.Chips)
	assert.Equal(t, 1000, bots[0].Chips)
	assert.False(t, alice.Ready)
	assert.True(t, bots[0].Ready)
	assert.Equal(t, Avatars[0], alice.Avatar, "identity survives")
}

func TestSnapshotHidesTokens(t *testing.T) {
	t.Parallel()
	r := New("ROOM", 4, 1000)
	alice, _ := r.Join("Alice", 0)

	snap := r.Snapshot()
	snap.Players[0].Chips = 1
	assert.Equal(t, 1000, alice.Chips, "snapshot is a copy")

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(b), alice.Token)
}

func TestNewCode(t *testing.T) {
	t.Parallel()
	code := NewCode()
	assert.Len(t, code, codeLength)
	for _, c := range code {
		assert.Contains(t, codeChars, string(c))
	}
}
