package game

import (
	"fmt"
	"maps"
	rand "math/rand/v2"
)

// AuctionState is an open sealed-bid round for a single box.
type AuctionState struct {
	Round          int            `json:"round"`
	Box            BoxView        `json:"box"`
	TimeLeft       int            `json:"time_left"`
	MinBid         int            `json:"min_bid"`
	BoxesRemaining int            `json:"boxes_remaining"`
	Submitted      []string       `json:"submitted"`
	Bids           map[string]int `json:"-"`
	Result         *AuctionResult `json:"result,omitempty"`

	box    AuctionBox
	closed bool
}

// AuctionResult is the immutable outcome of an auction round. WinnerID is
// empty when the box went unsold.
type AuctionResult struct {
	Round        int            `json:"round"`
	Box          AuctionBox     `json:"box"`
	WinnerID     string         `json:"winner_id,omitempty"`
	WinningBid   int            `json:"winning_bid,omitempty"`
	Tie          bool           `json:"tie,omitempty"`
	Bids         map[string]int `json:"bids"`
	Effect       MysteryEffect  `json:"effect,omitempty"`
	EffectTarget string         `json:"effect_target,omitempty"`
	CoinWon      *bool          `json:"coin_won,omitempty"`
	ShieldUsed   bool           `json:"shield_used,omitempty"`
	Amount       int            `json:"amount"`
	Deltas       map[string]int `json:"deltas"`
	Balances     map[string]int `json:"balances"`
	Narrative    string         `json:"narrative"`
}

// NewAuctionState opens the auction for box.
func NewAuctionState(round int, box AuctionBox, timeLeft, minBid, remaining int) *AuctionState {
	return &AuctionState{
		Round:          round,
		Box:            box.View(),
		TimeLeft:       timeLeft,
		MinBid:         minBid,
		BoxesRemaining: remaining,
		Submitted:      []string{},
		Bids:           make(map[string]int),
		box:            box,
	}
}

// Clone copies the round so it can leave the session goroutine.
func (st *AuctionState) Clone() *AuctionState {
	if st == nil {
		return nil
	}
	c := *st
	c.Submitted = append([]string(nil), st.Submitted...)
	c.Bids = maps.Clone(st.Bids)
	return &c
}

// Closed reports whether the round stopped accepting bids.
func (st *AuctionState) Closed() bool {
	return st.closed || st.TimeLeft <= 0
}

// PlaceBid records p's sealed bid. Zero is an explicit pass and is always
// accepted; anything else must be between the floor and p's balance.
func (st *AuctionState) PlaceBid(p *Player, amount int) error {
	if st.Closed() {
		return ErrRoundClosed
	}
	if _, ok := st.Bids[p.ID]; ok {
		return ErrAlreadySubmitted
	}
	if amount != 0 && (amount < st.MinBid || amount > p.Chips) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfRange, amount, st.MinBid, p.Chips)
	}
	st.Bids[p.ID] = amount
	st.Submitted = append(st.Submitted, p.ID)
	return nil
}

// auctionCtx is the working set for applying a box to the table.
type auctionCtx struct {
	res     *AuctionResult
	winner  *Player
	players []*Player
	shields map[string]bool
	rng     *rand.Rand
	scratch map[string]int
}

func (c *auctionCtx) opponents() []*Player {
	return others(c.players, c.winner.ID)
}

var boxEffects = [...]func(*auctionCtx){
	BoxDiamond: applyGain,
	BoxNormal:  applyGain,
	BoxBomb:    applyBomb,
	BoxMystery: applyMystery,
}

var mysteryEffects = [...]func(*auctionCtx){
	EffectNone:            func(*auctionCtx) {},
	EffectSteal:           applySteal,
	EffectSwap:            applySwap,
	EffectRedistribute:    applyRedistribute,
	EffectDoubleOrNothing: applyDoubleOrNothing,
	EffectShield:          applyShield,
}

var (
	_ = [1]struct{}{}[len(boxEffects)-int(numBoxKinds)]
	_ = [1]struct{}{}[len(mysteryEffects)-int(numEffects)]
)

// ResolveAuction closes the round and clears the box. The single highest
// bidder wins at their own bid; a shared top bid or no bids leaves the box
// unsold. shields is updated when a shield is granted or consumed.
func ResolveAuction(st *AuctionState, players []*Player, shields map[string]bool, rng *rand.Rand) *AuctionResult {
	st.closed = true
	before := balances(players)
	res := &AuctionResult{
		Round: st.Round,
		Box:   st.box,
		Bids:  maps.Clone(st.Bids),
	}

	winner, bid, tie := highestBid(st, players)
	switch {
	case winner != nil:
		res.WinnerID = winner.ID
		res.WinningBid = bid
		boxEffects[st.box.Kind](&auctionCtx{
			res:     res,
			winner:  winner,
			players: players,
			shields: shields,
			rng:     rng,
			scratch: make(map[string]int),
		})
	case tie:
		res.Tie = true
		res.Narrative = fmt.Sprintf("Tied at %d. No haggling: %s goes unsold.", bid, st.box.Name)
	default:
		res.Narrative = fmt.Sprintf("Nobody bid. %s goes unsold.", st.box.Name)
	}

	ClampBalances(players)
	res.Balances = balances(players)
	res.Deltas = make(map[string]int, len(players))
	for _, p := range players {
		res.Deltas[p.ID] = p.Chips - before[p.ID]
	}
	st.Result = res
	return res
}

// highestBid returns the unique top bidder. tie reports a shared top bid.
func highestBid(st *AuctionState, players []*Player) (winner *Player, bid int, tie bool) {
	for _, p := range players {
		amount := st.Bids[p.ID]
		if amount <= 0 {
			continue
		}
		switch {
		case amount > bid:
			winner, bid, tie = p, amount, false
		case amount == bid:
			tie = true
		}
	}
	if tie {
		return nil, bid, true
	}
	return winner, bid, false
}

// applyGain pays the winner bid x value, collected evenly from the other
// players. Sources that cannot cover their share pay what they have.
func applyGain(c *auctionCtx) {
	want := c.res.WinningBid * c.res.Box.ValuePct / 100
	got := takeEvenly(c.opponents(), want, c.scratch)
	c.winner.Chips += got
	c.res.Amount = got
	c.res.Narrative = fmt.Sprintf("%s was a %s box! %s collects %d.", c.res.Box.Name, c.res.Box.Kind, c.winner.Name, got)
}

// applyBomb makes the winner pay 80% of the bid to everyone else, unless a
// shield absorbs it.
func applyBomb(c *auctionCtx) {
	if c.shields[c.winner.ID] {
		delete(c.shields, c.winner.ID)
		c.res.ShieldUsed = true
		c.res.Narrative = fmt.Sprintf("%s was a bomb, but %s's shield absorbed it.", c.res.Box.Name, c.winner.Name)
		return
	}
	c.res.Amount = payOut(c, c.res.WinningBid*c.res.Box.ValuePct/100)
	c.res.Narrative = fmt.Sprintf("%s was a bomb! %s pays %d to the table.", c.res.Box.Name, c.winner.Name, c.res.Amount)
}

// payOut moves up to amount from the winner to the opponents.
func payOut(c *auctionCtx, amount int) int {
	opps := c.opponents()
	if len(opps) == 0 {
		return 0
	}
	amount = min(amount, c.winner.Chips)
	if amount <= 0 {
		return 0
	}
	c.winner.Chips -= amount
	giveEvenly(opps, amount, c.scratch)
	return amount
}

func applyMystery(c *auctionCtx) {
	c.res.Effect = c.res.Box.Effect
	mysteryEffects[c.res.Box.Effect](c)
}

// applySteal takes a fixed share of the richest opponent's chips. The
// earliest seat wins ties for richest.
func applySteal(c *auctionCtx) {
	var richest *Player
	for _, p := range c.opponents() {
		if richest == nil || p.Chips > richest.Chips {
			richest = p
		}
	}
	if richest == nil {
		c.res.Narrative = "Mystery steal, but there is nobody to steal from."
		return
	}
	c.res.EffectTarget = richest.ID
	c.res.Amount = transfer(richest, c.winner, richest.Chips*stealPct/100, c.scratch)
	c.res.Narrative = fmt.Sprintf("Mystery steal! %s takes %d from %s.", c.winner.Name, c.res.Amount, richest.Name)
}

// applySwap exchanges balances with a random opponent.
func applySwap(c *auctionCtx) {
	opps := c.opponents()
	if len(opps) == 0 {
		c.res.Narrative = "Mystery swap, but there is nobody to swap with."
		return
	}
	target := opps[c.rng.IntN(len(opps))]
	c.winner.Chips, target.Chips = target.Chips, c.winner.Chips
	c.res.EffectTarget = target.ID
	c.res.Amount = abs(c.winner.Chips - target.Chips)
	c.res.Narrative = fmt.Sprintf("Mystery swap! %s and %s trade stacks.", c.winner.Name, target.Name)
}

// applyRedistribute pools every chip and deals them back evenly, the
// remainder going to the earliest seats.
func applyRedistribute(c *auctionCtx) {
	total := 0
	for _, p := range c.players {
		total += p.Chips
	}
	base, rem := total/len(c.players), total%len(c.players)
	for i, p := range c.players {
		p.Chips = base
		if i < rem {
			p.Chips++
		}
	}
	c.res.Amount = total
	c.res.Narrative = fmt.Sprintf("Mystery redistribution! %d chips are shared out evenly.", total)
}

// applyDoubleOrNothing flips a coin for 1.5x the bid: heads the table pays
// the winner, tails the winner pays the table.
func applyDoubleOrNothing(c *auctionCtx) {
	amount := c.res.WinningBid * c.res.Box.ValuePct / 100
	won := c.rng.IntN(2) == 0
	c.res.CoinWon = &won
	if won {
		got := takeEvenly(c.opponents(), amount, c.scratch)
		c.winner.Chips += got
		c.res.Amount = got
		c.res.Narrative = fmt.Sprintf("Double or nothing: heads! %s collects %d.", c.winner.Name, got)
		return
	}
	c.res.Amount = payOut(c, amount)
	c.res.Narrative = fmt.Sprintf("Double or nothing: tails. %s pays %d.", c.winner.Name, c.res.Amount)
}

func applyShield(c *auctionCtx) {
	c.shields[c.winner.ID] = true
	c.res.Narrative = fmt.Sprintf("Mystery shield! %s is protected from the next bomb.", c.winner.Name)
}
