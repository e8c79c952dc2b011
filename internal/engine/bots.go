package engine

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/partybets/internal/game"
)

// botStrategy decides what a bot submits. Decisions still go through the
// same validation as a human's.
type botStrategy interface {
	Name() string
	// Bet returns false when the bot sits the round out.
	Bet(st *game.BettingState, p *game.Player, rng *rand.Rand) (game.Bet, bool)
	Bid(st *game.AuctionState, p *game.Player, rng *rand.Rand) int
}

// autoPassChance is how often a random bot passes an auction it could bid on.
const autoPassChance = 0.3

type randomStrategy struct{}

type cautiousStrategy struct{}

func (randomStrategy) Name() string { return "random" }

func (randomStrategy) Bet(st *game.BettingState, p *game.Player, rng *rand.Rand) (game.Bet, bool) {
	opt := st.Options[rng.IntN(len(st.Options))]
	if st.Type == game.GroupPredict {
		return game.Bet{OptionID: opt.ID, ChoiceID: strconv.Itoa(rng.IntN(st.Seats + 1))}, true
	}
	lo := st.MinBet(p, opt)
	if lo > p.Chips {
		return game.Bet{}, false
	}
	hi := max(lo, p.Chips/2)
	return game.Bet{OptionID: opt.ID, Amount: lo + rng.IntN(hi-lo+1)}, true
}

func (randomStrategy) Bid(st *game.AuctionState, p *game.Player, rng *rand.Rand) int {
	if p.Chips < st.MinBid || rng.Float64() < autoPassChance {
		return 0
	}
	hi := max(st.MinBid, p.Chips*30/100)
	return st.MinBid + rng.IntN(hi-st.MinBid+1)
}

func (cautiousStrategy) Name() string { return "cautious" }

// Bet stakes the minimum on the option with the lowest odds.
func (cautiousStrategy) Bet(st *game.BettingState, p *game.Player, rng *rand.Rand) (game.Bet, bool) {
	if st.Type == game.GroupPredict {
		return game.Bet{OptionID: st.Options[0].ID, ChoiceID: strconv.Itoa(st.Seats / 2)}, true
	}
	best := st.Options[0]
	for _, o := range st.Options[1:] {
		if o.Odds < best.Odds {
			best = o
		}
	}
	lo := st.MinBet(p, best)
	if lo > p.Chips {
		return game.Bet{}, false
	}
	return game.Bet{OptionID: best.ID, Amount: lo}, true
}

// Bid only ever offers the floor, and only on half the boxes.
func (cautiousStrategy) Bid(st *game.AuctionState, p *game.Player, rng *rand.Rand) int {
	if p.Chips < st.MinBid || rng.IntN(2) == 0 {
		return 0
	}
	return st.MinBid
}

func resolveStrategy(name string) (botStrategy, error) {
	switch strings.ToLower(name) {
	case "", "random":
		return randomStrategy{}, nil
	case "cautious":
		return cautiousStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown bot strategy %q", name)
	}
}

// botKey identifies one pending bot decision.
type botKey struct {
	stage    game.Stage
	round    int
	playerID string
}

// botTimers holds the cancellable decision timers of the open round.
type botTimers map[botKey]*quartz.Timer

func (bt botTimers) stopAll() {
	for k, t := range bt {
		t.Stop()
		delete(bt, k)
	}
}

func (bt botTimers) stop(k botKey) {
	if t, ok := bt[k]; ok {
		t.Stop()
		delete(bt, k)
	}
}

// scheduleBots arms one decision timer per connected bot for the round that
// just opened.
func (m *machine) scheduleBots(stage game.Stage, round int) {
	spread := m.cfg.BotMaxDelay - m.cfg.BotMinDelay
	for _, p := range m.room.Players {
		if !p.Bot || !p.Connected {
			continue
		}
		delay := m.cfg.BotMinDelay
		if spread > 0 {
			delay += time.Duration(m.rng.Int64N(int64(spread) + 1))
		}
		key := botKey{stage: stage, round: round, playerID: p.ID}
		m.bots[key] = m.clock.AfterFunc(delay, func() {
			m.post(func() { m.botAct(key) })
		}, "engine", "bot")
	}
}

// botAct runs a bot's decision if its round is still open. The timer may
// have fired just before the round closed, so the round is checked again.
func (m *machine) botAct(key botKey) {
	delete(m.bots, key)
	gs := m.room.State
	if gs == nil || gs.Phase != game.PhaseOf(key.stage, game.StepRound) || gs.CurrentRound != key.round {
		return
	}
	p := m.room.Player(key.playerID)
	if p == nil || !p.Connected {
		return
	}

	var err error
	switch key.stage {
	case game.StageBetting:
		if gs.Betting == nil {
			return
		}
		if _, done := gs.Betting.Bets[p.ID]; done {
			return
		}
		bet, ok := m.strategy.Bet(gs.Betting, p, m.rng)
		if !ok {
			return
		}
		err = m.submitBet(p.ID, bet)
	case game.StageAuction:
		if gs.Auction == nil {
			return
		}
		if _, done := gs.Auction.Bids[p.ID]; done {
			return
		}
		err = m.submitBid(p.ID, m.strategy.Bid(gs.Auction, p, m.rng))
	}
	if err != nil {
		m.logger.Debug().Err(err).Str("bot", p.Name).Msg("Bot decision rejected")
	}
}
