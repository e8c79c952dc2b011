package engine

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/gamelog"
	"github.com/lox/partybets/internal/protocol"
	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
)

var (
	// ErrInvariant marks internal states that should be impossible. The
	// affected round is abandoned.
	ErrInvariant = errors.New("state invariant violated")

	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrGameInProgress   = errors.New("game already started")
	ErrNotFinished      = errors.New("game has not finished")
)

// machine is the phase state machine of one room. It is not safe for
// concurrent use: every method runs on the owning session's goroutine.
type machine struct {
	cfg      Config
	room     *room.Room
	clock    quartz.Clock
	rng      *rand.Rand
	seed     int64
	out      Broadcaster
	sink     gamelog.Sink
	logger   zerolog.Logger
	strategy botStrategy

	// post queues fn onto the session goroutine. Timer callbacks use it and
	// nothing else.
	post   func(fn func())
	sinkWG *sync.WaitGroup

	gameID   string
	boxes    []game.AuctionBox
	betOrder []game.BetType
	acks     map[string]bool
	bots     botTimers

	// timer is the room's single phase clock; epoch invalidates callbacks
	// of timers that were replaced.
	timer     *quartz.Timer
	epoch     uint64
	countdown int
}

func (m *machine) state() *game.GameState {
	return m.room.State
}

func (m *machine) broadcast(typ string, payload any) {
	m.out.Broadcast(m.room.ID, typ, payload)
}

func (m *machine) snapshot() room.Snapshot {
	s := m.room.Snapshot()
	s.Countdown = m.countdown
	return s
}

func (m *machine) broadcastSnapshot() {
	m.broadcast(protocol.TypeRoomSnapshot, m.snapshot())
}

// arm replaces the phase timer. fn runs on the session goroutine unless the
// timer was replaced in the meantime. A non-positive d runs fn right away.
func (m *machine) arm(d time.Duration, fn func()) {
	m.disarm()
	epoch := m.epoch
	fire := func() {
		m.post(func() {
			if epoch != m.epoch {
				return
			}
			m.timer = nil
			fn()
		})
	}
	if d <= 0 {
		m.timer = nil
		fn()
		return
	}
	m.timer = m.clock.AfterFunc(d, fire, "engine", "phase")
}

func (m *machine) disarm() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.epoch++
}

func (m *machine) setPhase(p game.Phase) {
	gs := m.state()
	gs.Phase = p
	m.logger.Debug().Str("phase", string(p)).Int("round", gs.CurrentRound).Msg("Phase changed")
	m.broadcast(protocol.TypePhaseChanged, protocol.PhaseChanged{Phase: p, Round: gs.CurrentRound})
}

// Lobby

// checkCountdown starts the start countdown once everyone is ready and
// cancels it as soon as that stops being true.
func (m *machine) checkCountdown() {
	ready := m.room.Status == room.StatusWaiting &&
		len(m.room.Players) >= m.cfg.MinPlayers &&
		m.room.AllHumansReady()

	switch {
	case ready && m.countdown == 0:
		m.countdown = seconds(m.cfg.StartCountdown)
		if m.countdown == 0 {
			m.arm(0, m.countdownExpired)
			return
		}
		m.broadcast(protocol.TypeCountdownTick, protocol.CountdownTick{Seconds: m.countdown})
		m.arm(time.Second, m.countdownTick)
	case !ready && m.countdown > 0:
		m.disarm()
		m.countdown = 0
		m.logger.Debug().Msg("Start countdown cancelled")
	}
}

func (m *machine) countdownTick() {
	m.countdown--
	if m.countdown <= 0 {
		m.countdownExpired()
		return
	}
	m.broadcast(protocol.TypeCountdownTick, protocol.CountdownTick{Seconds: m.countdown})
	m.arm(time.Second, m.countdownTick)
}

func (m *machine) countdownExpired() {
	m.countdown = 0
	m.broadcast(protocol.TypeCountdownTick, protocol.CountdownTick{Seconds: 0})
	if err := m.startGame(); err != nil {
		m.logger.Warn().Err(err).Msg("Countdown finished but game could not start")
		m.broadcastSnapshot()
	}
}

// startGame moves the room from the lobby into the first betting intro.
func (m *machine) startGame() error {
	if m.room.Status != room.StatusWaiting {
		return ErrGameInProgress
	}
	if len(m.room.Players) < m.cfg.MinPlayers {
		return fmt.Errorf("%w: %d seated, %d required", ErrNotEnoughPlayers, len(m.room.Players), m.cfg.MinPlayers)
	}

	m.disarm()
	m.countdown = 0
	m.gameID = uuid.NewString()
	m.boxes = game.GenerateBoxes(m.cfg.Boxes, m.rng)
	m.betOrder = append([]game.BetType(nil), m.cfg.BetTypes...)
	m.rng.Shuffle(len(m.betOrder), func(i, j int) {
		m.betOrder[i], m.betOrder[j] = m.betOrder[j], m.betOrder[i]
	})
	clear(m.room.Shields)
	m.room.Status = room.StatusPlaying
	m.room.State = &game.GameState{
		CurrentRound:  1,
		BettingRounds: m.cfg.BettingRounds,
		AuctionRounds: m.cfg.AuctionRounds,
		StartedAt:     m.clock.Now(),
	}

	m.logger.Info().
		Str("game_id", m.gameID).
		Int("players", len(m.room.Players)).
		Int64("seed", m.seed).
		Msg("Game started")

	m.broadcast(protocol.TypeGameStarted, protocol.GameStarted{Game: m.state().Clone(), Players: m.snapshot().Players})
	m.enterIntro(game.StageBetting)
	return nil
}

// Phases

func (m *machine) enterIntro(stage game.Stage) {
	m.state().CurrentRound = 1
	m.setPhase(game.PhaseOf(stage, game.StepIntro))
	m.arm(m.cfg.IntroDelay, m.enterBriefing)
}

func (m *machine) currentStage() (game.Stage, bool) {
	gs := m.state()
	if gs == nil {
		return 0, false
	}
	return gs.Phase.Stage()
}

func (m *machine) enterBriefing() {
	stage, ok := m.currentStage()
	if !ok {
		return
	}
	m.acks = make(map[string]bool)
	m.setPhase(game.PhaseOf(stage, game.StepBriefing))
	if m.cfg.BriefingTimeout > 0 {
		m.arm(m.cfg.BriefingTimeout, m.openRound)
	} else {
		m.disarm()
	}
	m.checkBriefing()
}

// canChoose reports whether p has a meaningful decision in the coming round.
func (m *machine) canChoose(p *game.Player, stage game.Stage) bool {
	if stage == game.StageAuction {
		return p.Chips >= m.cfg.MinBid
	}
	return p.Chips > 0 || m.betTypeFor(m.state().CurrentRound) == game.GroupPredict
}

// checkBriefing opens the round once every connected human has acknowledged
// the briefing, or straight away if none of them has a real choice to make.
func (m *machine) checkBriefing() {
	gs := m.state()
	if gs == nil {
		return
	}
	stage, ok := gs.Phase.Stage()
	if !ok || gs.Phase != game.PhaseOf(stage, game.StepBriefing) {
		return
	}

	anyChoice := false
	for _, p := range m.room.ConnectedHumans() {
		if !m.canChoose(p, stage) {
			continue
		}
		anyChoice = true
		if !m.acks[p.ID] {
			return
		}
	}
	if !anyChoice {
		m.logger.Debug().Msg("No player has a choice, skipping briefing")
	}
	m.openRound()
}

func (m *machine) betTypeFor(round int) game.BetType {
	return m.betOrder[(round-1)%len(m.betOrder)]
}

func (m *machine) openRound() {
	stage, ok := m.currentStage()
	if !ok {
		return
	}
	gs := m.state()
	round := gs.CurrentRound

	switch stage {
	case game.StageBetting:
		pct, event := m.cfg.MinBetPct, game.RoundEvent("")
		if round > m.cfg.BettingRounds-m.cfg.HighStakesRounds {
			pct, event = m.cfg.HighStakesMinBetPct, game.EventHighStakes
		}
		st := game.NewBettingState(m.betTypeFor(round), round, seconds(m.cfg.BettingTime), pct, len(m.room.Players), m.rng)
		st.Event = event
		if st.Type == game.GroupPredict {
			st.Bonus = m.cfg.GroupPredictBonus
		}
		gs.Betting = st
		m.setPhase(game.PhaseBettingRound)
		m.broadcast(protocol.TypeBettingRoundOpened, protocol.BettingRoundOpened{Betting: st.Clone()})
	case game.StageAuction:
		box := m.boxes[round-1]
		gs.Auction = game.NewAuctionState(round, box, seconds(m.cfg.AuctionTime), m.cfg.MinBid, len(m.boxes)-round)
		m.setPhase(game.PhaseAuctionRound)
		m.broadcast(protocol.TypeAuctionRoundOpened, protocol.AuctionRoundOpened{Auction: gs.Auction.Clone()})
	}

	m.arm(time.Second, m.tick)
	m.scheduleBots(stage, round)
	if m.allSubmitted() {
		m.closeRound()
	}
}

// timeLeft points at the open round's countdown.
func (m *machine) timeLeft() *int {
	gs := m.state()
	switch {
	case gs == nil:
		return nil
	case gs.Phase == game.PhaseBettingRound && gs.Betting != nil:
		return &gs.Betting.TimeLeft
	case gs.Phase == game.PhaseAuctionRound && gs.Auction != nil:
		return &gs.Auction.TimeLeft
	}
	return nil
}

func (m *machine) tick() {
	left := m.timeLeft()
	if left == nil {
		if stage, ok := m.currentStage(); ok && m.state().Phase == game.PhaseOf(stage, game.StepRound) {
			m.abandon(stage, fmt.Errorf("%w: ticking round %d with no state", ErrInvariant, m.state().CurrentRound))
		}
		return
	}
	*left--
	m.broadcast(protocol.TypeTimerTick, protocol.TimerTick{Phase: m.state().Phase, SecondsLeft: max(*left, 0)})
	if *left <= 0 {
		m.closeRound()
		return
	}
	m.arm(time.Second, m.tick)
}

// allSubmitted reports whether every connected player that can act in the
// open round has done so. A round nobody connected can act in is left to
// its timer.
func (m *machine) allSubmitted() bool {
	gs := m.state()
	acting := 0
	for _, p := range m.room.Players {
		if !p.Connected {
			continue
		}
		switch {
		case gs.Phase == game.PhaseBettingRound && gs.Betting != nil:
			if !gs.Betting.CanBet(p) {
				continue
			}
			if _, ok := gs.Betting.Bets[p.ID]; !ok {
				return false
			}
		case gs.Phase == game.PhaseAuctionRound && gs.Auction != nil:
			if _, ok := gs.Auction.Bids[p.ID]; !ok {
				return false
			}
		default:
			return false
		}
		acting++
	}
	return acting > 0
}

// closeRound resolves the open round and starts the reveal.
func (m *machine) closeRound() {
	stage, ok := m.currentStage()
	if !ok {
		return
	}
	m.disarm()
	m.bots.stopAll()

	gs := m.state()
	switch stage {
	case game.StageBetting:
		if gs.Betting == nil {
			m.abandon(stage, fmt.Errorf("%w: closing betting round %d with no state", ErrInvariant, gs.CurrentRound))
			return
		}
		res := game.ResolveBetting(gs.Betting, m.room.Players, m.rng)
		m.logger.Debug().Str("type", res.Type.String()).Str("winning", res.WinningOptionID).Msg("Betting round resolved")
		m.setPhase(game.PhaseBettingReveal)
		m.broadcast(protocol.TypeBettingResult, protocol.BettingResult{Result: res})
	case game.StageAuction:
		if gs.Auction == nil {
			m.abandon(stage, fmt.Errorf("%w: closing auction round %d with no state", ErrInvariant, gs.CurrentRound))
			return
		}
		res := game.ResolveAuction(gs.Auction, m.room.Players, m.room.Shields, m.rng)
		m.logger.Debug().Str("box", res.Box.Kind.String()).Str("winner", res.WinnerID).Msg("Auction round resolved")
		m.setPhase(game.PhaseAuctionReveal)
		m.broadcast(protocol.TypeAuctionResult, protocol.AuctionResult{Result: res, Shields: m.snapshot().Shields})
	}
	m.arm(m.cfg.RevealDelay, m.showResult)
}

// showResult is only ever armed from a reveal.
func (m *machine) showResult() {
	stage, ok := m.currentStage()
	if !ok || m.state().Phase != game.PhaseOf(stage, game.StepReveal) {
		return
	}
	round := m.state().CurrentRound
	m.setPhase(game.PhaseOf(stage, game.StepResult))
	m.arm(m.cfg.ResultDelay, func() { m.advanceRound(stage, round) })
}

// advanceRound leaves the result of round and moves to the next round, the
// next stage or the final result. It does nothing if that round was already
// left.
func (m *machine) advanceRound(stage game.Stage, round int) {
	gs := m.state()
	if gs == nil || gs.Phase != game.PhaseOf(stage, game.StepResult) || gs.CurrentRound != round {
		return
	}
	gs.Betting = nil
	gs.Auction = nil
	gs.CurrentRound++

	switch {
	case gs.CurrentRound <= gs.Rounds(stage):
		m.enterBriefing()
	case stage == game.StageBetting:
		m.enterIntro(game.StageAuction)
	default:
		m.finish()
	}
}

// abandon drops a round that cannot be resolved and moves on after the
// usual result delay.
func (m *machine) abandon(stage game.Stage, err error) {
	m.logger.Error().Err(err).Str("game_id", m.gameID).Msg("Abandoning round")
	m.disarm()
	m.bots.stopAll()
	gs := m.state()
	gs.Betting = nil
	gs.Auction = nil
	round := gs.CurrentRound
	m.setPhase(game.PhaseOf(stage, game.StepResult))
	m.arm(m.cfg.ResultDelay, func() { m.advanceRound(stage, round) })
}

func (m *machine) finish() {
	m.disarm()
	m.bots.stopAll()
	gs := m.state()
	gs.Betting = nil
	gs.Auction = nil
	gs.Leaderboard = game.BuildLeaderboard(m.room.Players, m.cfg.PrizePercents)
	m.room.Status = room.StatusFinished
	m.setPhase(game.PhaseFinalResult)
	m.broadcast(protocol.TypeFinalResult, protocol.FinalResult{
		GameID:      m.gameID,
		Leaderboard: append([]game.Standing(nil), gs.Leaderboard...),
	})

	finished := m.clock.Now()
	summary := gamelog.Summary{
		GameID:        m.gameID,
		RoomID:        m.room.ID,
		Seed:          m.seed,
		BettingRounds: gs.BettingRounds,
		AuctionRounds: gs.AuctionRounds,
		StartedAt:     gs.StartedAt,
		FinishedAt:    finished,
		Duration:      finished.Sub(gs.StartedAt),
		Standings:     append([]game.Standing(nil), gs.Leaderboard...),
	}
	m.logger.Info().Str("game_id", m.gameID).Dur("duration", summary.Duration).Msg("Game finished")

	m.sinkWG.Add(1)
	go func() {
		defer m.sinkWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SinkTimeout)
		defer cancel()
		if err := m.sink.Record(ctx, summary); err != nil {
			m.logger.Error().Err(err).Str("game_id", summary.GameID).Msg("Failed to record game summary")
		}
	}()
}

// Commands

func (m *machine) submitBet(playerID string, bet game.Bet) error {
	gs := m.state()
	if gs == nil || gs.Phase != game.PhaseBettingRound {
		return game.ErrWrongPhase
	}
	if gs.Betting == nil {
		err := fmt.Errorf("%w: betting round %d has no state", ErrInvariant, gs.CurrentRound)
		m.abandon(game.StageBetting, err)
		return err
	}
	p := m.room.Player(playerID)
	if p == nil {
		return room.ErrUnknownPlayer
	}
	bet.SubmittedAt = m.clock.Now()
	if err := gs.Betting.Place(p, bet); err != nil {
		return err
	}
	m.bots.stop(botKey{stage: game.StageBetting, round: gs.CurrentRound, playerID: playerID})
	m.broadcast(protocol.TypeBetConfirmed, protocol.Confirmed{PlayerID: playerID})
	if m.allSubmitted() {
		m.closeRound()
	}
	return nil
}

func (m *machine) submitBid(playerID string, amount int) error {
	gs := m.state()
	if gs == nil || gs.Phase != game.PhaseAuctionRound {
		return game.ErrWrongPhase
	}
	if gs.Auction == nil {
		err := fmt.Errorf("%w: auction round %d has no state", ErrInvariant, gs.CurrentRound)
		m.abandon(game.StageAuction, err)
		return err
	}
	p := m.room.Player(playerID)
	if p == nil {
		return room.ErrUnknownPlayer
	}
	if err := gs.Auction.PlaceBid(p, amount); err != nil {
		return err
	}
	m.bots.stop(botKey{stage: game.StageAuction, round: gs.CurrentRound, playerID: playerID})
	m.broadcast(protocol.TypeBidConfirmed, protocol.Confirmed{PlayerID: playerID})
	if m.allSubmitted() {
		m.closeRound()
	}
	return nil
}

func (m *machine) roundReady(playerID string) error {
	gs := m.state()
	if gs == nil {
		return game.ErrWrongPhase
	}
	if step, ok := gs.Phase.Step(); !ok || step != game.StepBriefing {
		return game.ErrWrongPhase
	}
	if m.room.Player(playerID) == nil {
		return room.ErrUnknownPlayer
	}
	m.acks[playerID] = true
	m.checkBriefing()
	return nil
}

func (m *machine) disconnect(playerID string, conn uint64) error {
	if _, err := m.room.Disconnect(playerID, conn); err != nil {
		if errors.Is(err, room.ErrStaleConnection) {
			m.logger.Debug().Str("player_id", playerID).Msg("Ignoring disconnect of a replaced connection")
			return nil
		}
		return err
	}
	m.checkCountdown()
	m.checkBriefing()
	m.broadcastSnapshot()
	return nil
}

func (m *machine) playAgain() error {
	if m.room.Status != room.StatusFinished {
		return ErrNotFinished
	}
	m.disarm()
	m.bots.stopAll()
	m.room.Reset()
	m.gameID = ""
	m.boxes = nil
	m.betOrder = nil
	m.acks = nil
	m.logger.Info().Msg("Room reset for another game")
	m.checkCountdown()
	m.broadcastSnapshot()
	return nil
}

// shutdown stops every timer; the session is going away.
func (m *machine) shutdown() {
	m.disarm()
	m.bots.stopAll()
}
