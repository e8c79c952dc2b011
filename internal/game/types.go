package game

import "time"

// Phase is a node of the game's state machine.
type Phase string

const (
	PhaseBettingIntro    Phase = "betting_intro"
	PhaseBettingBriefing Phase = "betting_briefing"
	PhaseBettingRound    Phase = "betting_round"
	PhaseBettingReveal   Phase = "betting_reveal"
	PhaseBettingResult   Phase = "betting_result"
	PhaseAuctionIntro    Phase = "auction_intro"
	PhaseAuctionBriefing Phase = "auction_briefing"
	PhaseAuctionRound    Phase = "auction_round"
	PhaseAuctionReveal   Phase = "auction_reveal"
	PhaseAuctionResult   Phase = "auction_result"
	PhaseFinalResult     Phase = "final_result"
)

// Stage is one of the two sequential parts of a game.
type Stage uint8

const (
	StageBetting Stage = iota
	StageAuction
)

func (s Stage) String() string {
	if s == StageAuction {
		return "auction"
	}
	return "betting"
}

// Step identifies a position inside a stage.
type Step uint8

const (
	StepIntro Step = iota
	StepBriefing
	StepRound
	StepReveal
	StepResult
)

var stagePhases = [2][5]Phase{
	StageBetting: {PhaseBettingIntro, PhaseBettingBriefing, PhaseBettingRound, PhaseBettingReveal, PhaseBettingResult},
	StageAuction: {PhaseAuctionIntro, PhaseAuctionBriefing, PhaseAuctionRound, PhaseAuctionReveal, PhaseAuctionResult},
}

// PhaseOf returns the phase for a step of a stage.
func PhaseOf(stage Stage, step Step) Phase {
	return stagePhases[stage][step]
}

// Stage reports which stage the phase belongs to. The final phase reports
// false.
func (p Phase) Stage() (Stage, bool) {
	for stage, phases := range stagePhases {
		for _, phase := range phases {
			if phase == p {
				return Stage(stage), true
			}
		}
	}
	return 0, false
}

// Step reports the phase's position within its stage.
func (p Phase) Step() (Step, bool) {
	for _, phases := range stagePhases {
		for step, phase := range phases {
			if phase == p {
				return Step(step), true
			}
		}
	}
	return 0, false
}

// Player is a seat at the table.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Chips     int    `json:"chips"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	Bot       bool   `json:"bot"`
	BuyIn     int    `json:"buy_in,omitempty"`

	// Token lets a player reclaim the seat after a disconnect. It is only
	// ever sent to the player it belongs to.
	Token string `json:"-"`
	// Conn counts the connections that have claimed this seat. Only the
	// latest one may mark the player disconnected.
	Conn uint64 `json:"-"`
}

// GameState is the orchestrator-owned progress of a running game.
type GameState struct {
	Phase         Phase         `json:"phase"`
	CurrentRound  int           `json:"current_round"`
	BettingRounds int           `json:"betting_rounds"`
	AuctionRounds int           `json:"auction_rounds"`
	Betting       *BettingState `json:"betting,omitempty"`
	Auction       *AuctionState `json:"auction,omitempty"`
	Leaderboard   []Standing    `json:"leaderboard,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
}

// Rounds returns the configured number of rounds for a stage.
func (gs *GameState) Rounds(stage Stage) int {
	if stage == StageAuction {
		return gs.AuctionRounds
	}
	return gs.BettingRounds
}

// Clone returns a copy that shares no mutable maps with gs. Results are
// immutable once produced and are shared.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	c.Betting = gs.Betting.Clone()
	c.Auction = gs.Auction.Clone()
	if gs.Leaderboard != nil {
		c.Leaderboard = append([]Standing(nil), gs.Leaderboard...)
	}
	return &c
}

// ClampBalances raises any negative balance to zero.
func ClampBalances(players []*Player) {
	for _, p := range players {
		if p.Chips < 0 {
			p.Chips = 0
		}
	}
}

func balances(players []*Player) map[string]int {
	out := make(map[string]int, len(players))
	for _, p := range players {
		out[p.ID] = p.Chips
	}
	return out
}
