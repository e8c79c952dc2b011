// Package room holds the seating record of a game room: who is at the
// table, in what order, whether they are connected, and the secret tokens
// that let a player reclaim a seat.
//
// A Room is not safe for concurrent use; it is owned by its engine session.
package room

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lox/partybets/internal/game"
)

// Status is the lifecycle of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

var (
	ErrRoomFull        = errors.New("room is full")
	ErrNotWaiting      = errors.New("room is not waiting for players")
	ErrUnknownToken    = errors.New("unknown reconnect token")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrNameRequired    = errors.New("name is required")
	ErrNameTooLong     = errors.New("name is too long")
	ErrStaleConnection = errors.New("seat was reclaimed by a newer connection")
)

// MaxNameLength bounds display names in runes.
const MaxNameLength = 20

const (
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 4
	tokenBytes = 32
)

// Avatars are handed out round-robin in join order.
var Avatars = []string{"fox", "owl", "cat", "bear", "frog", "panda", "tiger", "koala", "otter", "lion"}

// Room is one table. Players are listed in seating order.
type Room struct {
	ID       string
	Capacity int
	Stake    int
	Status   Status
	Players  []*game.Player
	State    *game.GameState
	// Shields lists players immune to the next bomb box.
	Shields map[string]bool

	nextAvatar int
	botSeq     int
}

// New creates an empty waiting room.
func New(id string, capacity, stake int) *Room {
	return &Room{
		ID:       id,
		Capacity: capacity,
		Stake:    stake,
		Status:   StatusWaiting,
		Shields:  make(map[string]bool),
	}
}

// NewCode returns a short random room code.
func NewCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			panic(fmt.Sprintf("room: reading random code: %v", err))
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

func newToken() string {
	b := make([]byte, tokenBytes)
	if _, err := crand.Read(b); err != nil {
		panic(fmt.Sprintf("room: reading random token: %v", err))
	}
	return hex.EncodeToString(b)
}

func (r *Room) avatar() string {
	a := Avatars[r.nextAvatar%len(Avatars)]
	r.nextAvatar++
	return a
}

// Join seats a new human player with the room's stake. The returned player
// carries the reconnect token, which must only be sent back to that player.
func (r *Room) Join(name string, buyIn int) (*game.Player, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, ErrNameRequired
	case utf8.RuneCountInString(name) > MaxNameLength:
		return nil, ErrNameTooLong
	case r.Status != StatusWaiting:
		return nil, ErrNotWaiting
	case len(r.Players) >= r.Capacity:
		return nil, ErrRoomFull
	}

	p := &game.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Avatar:    r.avatar(),
		Chips:     r.Stake,
		Connected: true,
		BuyIn:     max(buyIn, 0),
		Token:     newToken(),
		Conn:      1,
	}
	r.Players = append(r.Players, p)
	return p, nil
}

// Reconnect restores the seat that owns token. Display names are never used
// to identify a returning player.
func (r *Room) Reconnect(token string) (*game.Player, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	for _, p := range r.Players {
		if !p.Bot && p.Token == token {
			p.Connected = true
			p.Conn++
			return p, nil
		}
	}
	return nil, ErrUnknownToken
}

// Disconnect marks a player unreachable. The seat is kept so the player can
// reconnect; while waiting, their ready flag is dropped. conn is the
// connection generation the caller holds; a seat already reclaimed by a
// newer connection is left alone and ErrStaleConnection returned.
func (r *Room) Disconnect(id string, conn uint64) (*game.Player, error) {
	p := r.Player(id)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if conn != p.Conn {
		return p, ErrStaleConnection
	}
	p.Connected = false
	if r.Status == StatusWaiting {
		p.Ready = false
	}
	return p, nil
}

// SetReady updates a human player's ready flag in the lobby.
func (r *Room) SetReady(id string, ready bool) (*game.Player, error) {
	if r.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	p := r.Player(id)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	p.Ready = ready
	return p, nil
}

// Player looks up a seat by id.
func (r *Room) Player(id string) *game.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddBots seats up to n bots, limited by free seats. Bots are always
// connected and ready.
func (r *Room) AddBots(n int) ([]*game.Player, error) {
	if r.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	n = min(n, r.Capacity-len(r.Players))
	if n <= 0 {
		return nil, ErrRoomFull
	}
	added := make([]*game.Player, 0, n)
	for range n {
		r.botSeq++
		p := &game.Player{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("Bot %d", r.botSeq),
			Avatar:    r.avatar(),
			Chips:     r.Stake,
			Connected: true,
			Ready:     true,
			Bot:       true,
		}
		r.Players = append(r.Players, p)
		added = append(added, p)
	}
	return added, nil
}

// RemoveBots unseats up to n bots, most recently seated first.
func (r *Room) RemoveBots(n int) ([]*game.Player, error) {
	if r.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	var removed []*game.Player
	for i := len(r.Players) - 1; i >= 0 && len(removed) < n; i-- {
		if r.Players[i].Bot {
			removed = append(removed, r.Players[i])
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
		}
	}
	return removed, nil
}

// Reset returns the room to the lobby for another game. Every seat keeps its
// identity and avatar; balances go back to the stake and all game-scoped
// state is dropped.
func (r *Room) Reset() {
	r.Status = StatusWaiting
	r.State = nil
	clear(r.Shields)
	for _, p := range r.Players {
		p.Chips = r.Stake
		p.Ready = p.Bot
	}
}

// Humans returns the seated human players.
func (r *Room) Humans() []*game.Player {
	var out []*game.Player
	for _, p := range r.Players {
		if !p.Bot {
			out = append(out, p)
		}
	}
	return out
}

// ConnectedHumans returns the human players currently reachable.
func (r *Room) ConnectedHumans() []*game.Player {
	var out []*game.Player
	for _, p := range r.Players {
		if !p.Bot && p.Connected {
			out = append(out, p)
		}
	}
	return out
}

// AllHumansReady reports whether at least one human is connected and every
// connected human is ready.
func (r *Room) AllHumansReady() bool {
	humans := r.ConnectedHumans()
	if len(humans) == 0 {
		return false
	}
	for _, p := range humans {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Snapshot is a deep copy of the room that is safe to hand to other
// goroutines.
type Snapshot struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	Capacity  int             `json:"capacity"`
	Stake     int             `json:"stake"`
	Players   []game.Player   `json:"players"`
	Game      *game.GameState `json:"game,omitempty"`
	Shields   []string        `json:"shields,omitempty"`
	Countdown int             `json:"countdown,omitempty"`
}

// Snapshot copies the room. Reconnect tokens are not serialized.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		ID:       r.ID,
		Status:   r.Status,
		Capacity: r.Capacity,
		Stake:    r.Stake,
		Players:  make([]game.Player, len(r.Players)),
		Game:     r.State.Clone(),
	}
	for i, p := range r.Players {
		s.Players[i] = *p
	}
	for _, p := range r.Players {
		if r.Shields[p.ID] {
			s.Shields = append(s.Shields, p.ID)
		}
	}
	return s
}
