package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/protocol"
	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://party.example"

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

type testEnv struct {
	server   *Server
	registry *engine.Registry
	http     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := NewServer(testLogger(), WithAllowedOrigins([]string{testOrigin}), WithCommandTimeout(2*time.Second))
	reg := engine.NewRegistry(testLogger(), engine.DefaultConfig(),
		engine.WithBroadcaster(srv),
		engine.WithClock(quartz.NewMock(t)),
	)
	srv.SetRegistry(reg)
	_, err := reg.Create("MAIN")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
		reg.StopAll()
	})
	return &testEnv{server: srv, registry: reg, http: ts}
}

func (e *testEnv) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(roomID), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitWatchers blocks until n connections watch roomID. Registration
// finishes just after the handshake, so a dial can return first.
func (e *testEnv) waitWatchers(t *testing.T, roomID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.server.mu.RLock()
		defer e.server.mu.RUnlock()
		return len(e.server.rooms[roomID]) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func (e *testEnv) wsURL(roomID string) string {
	u := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	if roomID != "" {
		u += "?room=" + roomID
	}
	return u
}

func (e *testEnv) snapshot(t *testing.T) room.Snapshot {
	t.Helper()
	sess, ok := e.registry.Get("MAIN")
	require.True(t, ok)
	snap, err := sess.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func sendCommand(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads frames until one of type typ arrives and decodes its
// payload into v.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)

		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type != typ {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(env.Payload, v))
		}
		return
	}
}

func join(t *testing.T, conn *websocket.Conn, name string) protocol.Joined {
	t.Helper()
	sendCommand(t, conn, protocol.TypeJoin, protocol.Join{Name: name})
	var joined protocol.Joined
	readUntil(t, conn, protocol.TypeJoined, &joined)
	return joined
}

func expectError(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()
	var e protocol.Error
	readUntil(t, conn, protocol.TypeError, &e)
	assert.Equal(t, code, e.Code, e.Message)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestRoomEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/rooms")
	require.NoError(t, err)
	var rooms []engine.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	_ = resp.Body.Close()
	require.Len(t, rooms, 1)
	assert.Equal(t, "MAIN", rooms[0].ID)
	assert.Equal(t, room.StatusWaiting, rooms[0].Status)

	resp, err = http.Get(env.http.URL + "/rooms/MAIN")
	require.NoError(t, err)
	var snap room.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	_ = resp.Body.Close()
	assert.Equal(t, "MAIN", snap.ID)
	assert.Equal(t, 10, snap.Capacity)

	resp, err = http.Get(env.http.URL + "/rooms/NOPE")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		origin string
		want   string
	}{
		{testOrigin, testOrigin},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, env.http.URL+"/rooms", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"), tt.origin)
	}
}

func TestWebSocketRejectsUnknownRoomAndOrigin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("NOPE"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err = websocket.DefaultDialer.Dial(env.wsURL("MAIN"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestJoinBroadcastsToRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	display := env.dial(t, "")
	phone := env.dial(t, "MAIN")
	env.waitWatchers(t, "MAIN", 2)

	joined := join(t, phone, "Alice")
	assert.NotEmpty(t, joined.PlayerID)
	assert.Len(t, joined.Token, 64)
	require.Len(t, joined.Room.Players, 1)
	assert.Equal(t, "Alice", joined.Room.Players[0].Name)

	var snap room.Snapshot
	readUntil(t, display, protocol.TypeRoomSnapshot, &snap)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, joined.PlayerID, snap.Players[0].ID)
	assert.Empty(t, snap.Players[0].Token, "tokens are only sent to their owner")

	sendCommand(t, phone, protocol.TypeAddBots, protocol.BotCount{Count: 2})
	readUntil(t, display, protocol.TypeRoomSnapshot, &snap)
	assert.Len(t, snap.Players, 3)
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	conn := env.dial(t, "MAIN")

	sendCommand(t, conn, protocol.TypeSubmitBet, protocol.SubmitBet{OptionID: "high", Amount: 100})
	expectError(t, conn, "not_joined")

	sendCommand(t, conn, "shout", nil)
	expectError(t, conn, "unknown_type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	expectError(t, conn, "bad_request")

	sendCommand(t, conn, protocol.TypeJoin, protocol.Join{Name: "  "})
	expectError(t, conn, "name_required")

	join(t, conn, "Alice")
	sendCommand(t, conn, protocol.TypeJoin, protocol.Join{Name: "Alice again"})
	expectError(t, conn, "already_joined")

	sendCommand(t, conn, protocol.TypeSubmitBet, protocol.SubmitBet{OptionID: "high", Amount: 100})
	expectError(t, conn, "wrong_phase")

	sendCommand(t, conn, protocol.TypePlayAgain, nil)
	expectError(t, conn, "not_finished")
}

func TestDisconnectAndReconnect(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	conn := env.dial(t, "MAIN")
	joined := join(t, conn, "Alice")
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		snap := env.snapshot(t)
		return len(snap.Players) == 1 && !snap.Players[0].Connected
	}, 2*time.Second, 10*time.Millisecond)

	again := env.dial(t, "MAIN")
	sendCommand(t, again, protocol.TypeReconnect, protocol.Reconnect{Token: joined.Token})
	var rejoined protocol.Joined
	readUntil(t, again, protocol.TypeJoined, &rejoined)
	assert.Equal(t, joined.PlayerID, rejoined.PlayerID)
	assert.True(t, env.snapshot(t).Players[0].Connected)

	other := env.dial(t, "MAIN")
	sendCommand(t, other, protocol.TypeReconnect, protocol.Reconnect{Token: "bogus"})
	expectError(t, other, "unknown_token")
}

func TestClosingReplacedConnectionKeepsPlayerConnected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	old := env.dial(t, "MAIN")
	joined := join(t, old, "Alice")

	// The phone refreshes: a new socket reclaims the seat before the old
	// one is torn down.
	fresh := env.dial(t, "MAIN")
	sendCommand(t, fresh, protocol.TypeReconnect, protocol.Reconnect{Token: joined.Token})
	readUntil(t, fresh, protocol.TypeJoined, nil)

	require.NoError(t, old.Close())
	env.waitWatchers(t, "MAIN", 1)
	require.Never(t, func() bool {
		return !env.snapshot(t).Players[0].Connected
	}, 300*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, fresh.Close())
	require.Eventually(t, func() bool {
		return !env.snapshot(t).Players[0].Connected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastOnlyReachesRoomWatchers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, err := env.registry.Create("SIDE")
	require.NoError(t, err)

	main := env.dial(t, "MAIN")
	side := env.dial(t, "SIDE")
	env.waitWatchers(t, "MAIN", 1)
	env.waitWatchers(t, "SIDE", 1)

	join(t, side, "Bob")
	env.server.Broadcast("MAIN", protocol.TypeCountdownTick, protocol.CountdownTick{Seconds: 3})

	var tick protocol.CountdownTick
	readUntil(t, main, protocol.TypeCountdownTick, &tick)
	assert.Equal(t, 3, tick.Seconds)

	// MAIN's watcher saw nothing of SIDE's join.
	require.NoError(t, main.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = main.ReadMessage()
	require.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: 5 not in [10, 100]", game.ErrAmountOutOfRange), "amount_out_of_range"},
		{game.ErrAlreadySubmitted, "already_submitted"},
		{room.ErrRoomFull, "room_full"},
		{fmt.Errorf("%w: 1 seated", engine.ErrNotEnoughPlayers), "not_enough_players"},
		{engine.ErrInvariant, "internal"},
		{errNotJoined, "not_joined"},
		{io.EOF, "bad_request"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}
