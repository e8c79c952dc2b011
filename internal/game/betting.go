package game

import (
	"fmt"
	"maps"
	rand "math/rand/v2"
	"strconv"
	"time"
)

// BetType selects the mini-game played in a betting round.
type BetType uint8

const (
	DiceHighLow BetType = iota
	DiceExact
	Roulette
	CoinMultiply
	MysteryPick
	GroupPredict

	numBetTypes
)

var betTypeNames = [...]string{
	DiceHighLow:  "dice_high_low",
	DiceExact:    "dice_exact",
	Roulette:     "roulette",
	CoinMultiply: "coin_multiply",
	MysteryPick:  "mystery_pick",
	GroupPredict: "group_predict",
}

// resolvers maps every bet type to its rules. The array length check below
// fails to compile when a bet type is added without a resolver.
var resolvers = [...]resolver{
	DiceHighLow:  diceHighLow{},
	DiceExact:    diceExact{},
	Roulette:     roulette{},
	CoinMultiply: coinMultiply{},
	MysteryPick:  mysteryPick{},
	GroupPredict: groupPredict{},
}

var (
	_ = [1]struct{}{}[len(resolvers)-int(numBetTypes)]
	_ = [1]struct{}{}[len(betTypeNames)-int(numBetTypes)]
)

func (t BetType) String() string {
	if t < numBetTypes {
		return betTypeNames[t]
	}
	return "bet_type(" + strconv.Itoa(int(t)) + ")"
}

func (t BetType) MarshalText() ([]byte, error) {
	if t >= numBetTypes {
		return nil, fmt.Errorf("unknown bet type %d", t)
	}
	return []byte(betTypeNames[t]), nil
}

func (t *BetType) UnmarshalText(b []byte) error {
	parsed, err := ParseBetType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseBetType converts a wire name such as "roulette" to a BetType.
func ParseBetType(s string) (BetType, error) {
	for i, name := range betTypeNames {
		if name == s {
			return BetType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bet type %q", s)
}

// BetTypes lists every bet type in declaration order.
func BetTypes() []BetType {
	out := make([]BetType, numBetTypes)
	for i := range out {
		out[i] = BetType(i)
	}
	return out
}

// RoundEvent modifies the rules of a single round.
type RoundEvent string

const EventHighStakes RoundEvent = "high_stakes"

// Option is a selectable outcome in a betting round.
type Option struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Odds      int    `json:"odds"`
	MinBetPct int    `json:"min_bet_pct,omitempty"`
}

// Bet is a single accepted bet. Amount is zero for group_predict.
type Bet struct {
	OptionID    string    `json:"option_id"`
	Amount      int       `json:"amount"`
	ChoiceID    string    `json:"choice_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BettingState is the mutable state of an open betting round. Individual
// bets stay sealed until the result is published; clients only see who has
// submitted.
type BettingState struct {
	Type      BetType        `json:"type"`
	Round     int            `json:"round"`
	TimeLeft  int            `json:"time_left"`
	MinBetPct int            `json:"min_bet_pct"`
	Event     RoundEvent     `json:"event,omitempty"`
	Seats     int            `json:"seats"`
	Bonus     int            `json:"bonus,omitempty"`
	Options   []Option       `json:"options"`
	Submitted []string       `json:"submitted"`
	Bets      map[string]Bet `json:"-"`
	Result    *BetResult     `json:"result,omitempty"`

	// multipliers holds the hidden mystery_pick box values, aligned with
	// Options.
	multipliers []int
	closed      bool
}

// BetResult is the immutable outcome of a betting round.
type BetResult struct {
	Type            BetType        `json:"type"`
	Round           int            `json:"round"`
	WinningOptionID string         `json:"winning_option_id"`
	Bets            map[string]Bet `json:"bets"`
	Payouts         map[string]int `json:"payouts"`
	HouseShares     map[string]int `json:"house_shares,omitempty"`
	Deltas          map[string]int `json:"deltas"`
	Balances        map[string]int `json:"balances"`
	Narrative       string         `json:"narrative"`
	Animation       any            `json:"animation,omitempty"`
}

type resolver interface {
	options() []Option
	prepare(st *BettingState, rng *rand.Rand)
	resolve(st *BettingState, rng *rand.Rand) settlement
}

// settlement is what a mini-game decides before chips move.
type settlement struct {
	winning   string
	payouts   map[string]int
	narrative string
	animation any
	// unbanked rounds pay out without charging the table.
	unbanked bool
}

// NewBettingState opens a betting round of the given type. seats is the
// number of players at the table, used to bound group_predict predictions.
func NewBettingState(t BetType, round, timeLeft, minBetPct, seats int, rng *rand.Rand) *BettingState {
	st := &BettingState{
		Type:      t,
		Round:     round,
		TimeLeft:  timeLeft,
		MinBetPct: minBetPct,
		Seats:     seats,
		Options:   resolvers[t].options(),
		Submitted: []string{},
		Bets:      make(map[string]Bet),
	}
	resolvers[t].prepare(st, rng)
	return st
}

// Clone copies the round so it can leave the session goroutine.
func (st *BettingState) Clone() *BettingState {
	if st == nil {
		return nil
	}
	c := *st
	c.Submitted = append([]string(nil), st.Submitted...)
	c.Bets = maps.Clone(st.Bets)
	c.multipliers = append([]int(nil), st.multipliers...)
	return &c
}

// Closed reports whether the round stopped accepting bets.
func (st *BettingState) Closed() bool {
	return st.closed || st.TimeLeft <= 0
}

// Option looks up an option by id.
func (st *BettingState) Option(id string) (Option, bool) {
	for _, o := range st.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// MinBet is the smallest stake p may place on opt: the larger of the round's
// and the option's percentage of p's balance, rounded up, and at least 1.
func (st *BettingState) MinBet(p *Player, opt Option) int {
	pct := max(st.MinBetPct, opt.MinBetPct)
	return max((p.Chips*pct+99)/100, 1)
}

// CanBet reports whether p can afford at least one option.
func (st *BettingState) CanBet(p *Player) bool {
	if st.Type == GroupPredict {
		return true
	}
	for _, o := range st.Options {
		if st.MinBet(p, o) <= p.Chips {
			return true
		}
	}
	return false
}

// Place validates and records p's bet.
func (st *BettingState) Place(p *Player, bet Bet) error {
	if st.Closed() {
		return ErrRoundClosed
	}
	if _, ok := st.Bets[p.ID]; ok {
		return ErrAlreadySubmitted
	}
	opt, ok := st.Option(bet.OptionID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, bet.OptionID)
	}

	if st.Type == GroupPredict {
		n, err := strconv.Atoi(bet.ChoiceID)
		if err != nil || n < 0 || n > st.Seats {
			return fmt.Errorf("%w: prediction %q", ErrInvalidChoice, bet.ChoiceID)
		}
		bet.Amount = 0
	} else {
		lo := st.MinBet(p, opt)
		if bet.Amount < lo || bet.Amount > p.Chips {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfRange, bet.Amount, lo, p.Chips)
		}
		bet.ChoiceID = ""
	}

	st.Bets[p.ID] = bet
	st.Submitted = append(st.Submitted, p.ID)
	return nil
}

// ResolveBetting closes the round, settles every bet against players and
// attaches the result to st. Players that did not bet are untouched by the
// mini-game but share in the table's banking of the round.
func ResolveBetting(st *BettingState, players []*Player, rng *rand.Rand) *BetResult {
	st.closed = true
	s := resolvers[st.Type].resolve(st, rng)
	res := applySettlement(st, players, s)
	st.Result = res
	return res
}

func applySettlement(st *BettingState, players []*Player, s settlement) *BetResult {
	before := balances(players)
	res := &BetResult{
		Type:            st.Type,
		Round:           st.Round,
		WinningOptionID: s.winning,
		Bets:            maps.Clone(st.Bets),
		Payouts:         s.payouts,
		Narrative:       s.narrative,
		Animation:       s.animation,
	}

	if s.unbanked {
		for _, p := range players {
			p.Chips += s.payouts[p.ID]
		}
	} else {
		res.HouseShares = bankRound(players, s.payouts)
	}
	ClampBalances(players)

	res.Balances = balances(players)
	res.Deltas = make(map[string]int, len(players))
	for _, p := range players {
		res.Deltas[p.ID] = p.Chips - before[p.ID]
	}
	return res
}

// bankRound applies the nominal payouts and then spreads the round's net
// imbalance over every seat, so the table as a whole is the counterparty.
// A net win for the bettors is collected from everyone still holding chips;
// a net loss is shared out evenly. The returned shares are per-player
// adjustments on top of the payouts.
func bankRound(players []*Player, payouts map[string]int) map[string]int {
	shares := make(map[string]int)
	net := 0
	for _, p := range players {
		if v, ok := payouts[p.ID]; ok {
			p.Chips += v
			net += v
		}
	}
	switch {
	case net > 0:
		collectAll(players, net, shares)
	case net < 0:
		giveEvenly(players, -net, shares)
	}
	return shares
}

// fixedOdds pays stake x odds to winners and takes the stake from everyone
// else.
func fixedOdds(st *BettingState, wins func(Bet) bool) map[string]int {
	payouts := make(map[string]int, len(st.Bets))
	for id, bet := range st.Bets {
		if !wins(bet) {
			payouts[id] = -bet.Amount
			continue
		}
		opt, _ := st.Option(bet.OptionID)
		payouts[id] = bet.Amount * opt.Odds
	}
	return payouts
}
