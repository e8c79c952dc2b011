// Package protocol defines the JSON messages exchanged with phones and the
// shared display. Every frame is an envelope {"type": ..., "payload": ...}.
package protocol

import (
	"encoding/json"

	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/room"
)

// Client -> Server
const (
	TypeJoin       = "join"
	TypeReconnect  = "reconnect"
	TypeSetReady   = "set_ready"
	TypeSubmitBet  = "submit_bet"
	TypeSubmitBid  = "submit_bid"
	TypeRoundReady = "round_ready"
	TypeAddBots    = "add_bots"
	TypeRemoveBots = "remove_bots"
	TypePlayAgain  = "play_again"
)

// Server -> Client
const (
	TypeRoomSnapshot       = "room_snapshot"
	TypeGameStarted        = "game_started"
	TypePhaseChanged       = "phase_changed"
	TypeTimerTick          = "timer_tick"
	TypeCountdownTick      = "countdown_tick"
	TypeBettingRoundOpened = "betting_round_opened"
	TypeBetConfirmed       = "bet_confirmed"
	TypeBettingResult      = "betting_result"
	TypeAuctionRoundOpened = "auction_round_opened"
	TypeBidConfirmed       = "bid_confirmed"
	TypeAuctionResult      = "auction_result"
	TypeFinalResult        = "final_result"

	// Sent only to the connection that caused them.
	TypeJoined = "joined"
	TypeError  = "error"
)

// Command is an inbound envelope. Payload is decoded once the type is known.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound envelope.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client -> Server payloads

type Join struct {
	Name  string `json:"name"`
	BuyIn int    `json:"buy_in,omitempty"`
}

type Reconnect struct {
	Token string `json:"token"`
}

type SetReady struct {
	Ready bool `json:"ready"`
}

type SubmitBet struct {
	OptionID string `json:"option_id"`
	Amount   int    `json:"amount"`
	ChoiceID string `json:"choice_id,omitempty"`
}

type SubmitBid struct {
	Amount int `json:"amount"`
}

// BotCount is the payload of add_bots and remove_bots.
type BotCount struct {
	Count int `json:"count"`
}

// Server -> Client payloads

// Joined answers join and reconnect. Token is only ever sent here.
type Joined struct {
	PlayerID string        `json:"player_id"`
	Token    string        `json:"token"`
	Room     room.Snapshot `json:"room"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameStarted struct {
	Game    *game.GameState `json:"game"`
	Players []game.Player   `json:"players"`
}

type PhaseChanged struct {
	Phase game.Phase `json:"phase"`
	Round int        `json:"round"`
}

type TimerTick struct {
	Phase       game.Phase `json:"phase"`
	SecondsLeft int        `json:"seconds_left"`
}

type CountdownTick struct {
	Seconds int `json:"seconds"`
}

type BettingRoundOpened struct {
	Betting *game.BettingState `json:"betting"`
}

type AuctionRoundOpened struct {
	Auction *game.AuctionState `json:"auction"`
}

// Confirmed acknowledges a bet or bid without revealing it.
type Confirmed struct {
	PlayerID string `json:"player_id"`
}

type BettingResult struct {
	Result *game.BetResult `json:"result"`
}

type AuctionResult struct {
	Result  *game.AuctionResult `json:"result"`
	Shields []string            `json:"shields,omitempty"`
}

type FinalResult struct {
	GameID      string          `json:"game_id"`
	Leaderboard []game.Standing `json:"leaderboard"`
}
