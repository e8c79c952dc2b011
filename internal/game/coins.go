package game

import (
	"fmt"
	rand "math/rand/v2"
)

// CoinAnimation carries each bettor's own flips; true is heads.
type CoinAnimation struct {
	Flips map[string][]bool `json:"flips"`
}

// coinMultiply lets every player choose how many coins to flip. All of them
// must land heads; the payout doubles with each extra coin.
type coinMultiply struct{}

var coinOptions = []struct {
	id    string
	flips int
}{
	{"flip_1", 1},
	{"flip_2", 2},
	{"flip_3", 3},
}

func coinOdds(flips int) int {
	return 1<<flips - 1
}

func (coinMultiply) options() []Option {
	opts := make([]Option, len(coinOptions))
	for i, c := range coinOptions {
		opts[i] = Option{ID: c.id, Label: fmt.Sprintf("Flip %d", c.flips), Odds: coinOdds(c.flips)}
	}
	return opts
}

func (coinMultiply) prepare(*BettingState, *rand.Rand) {}

func flipsFor(optionID string) int {
	for _, c := range coinOptions {
		if c.id == optionID {
			return c.flips
		}
	}
	return 0
}

func (coinMultiply) resolve(st *BettingState, rng *rand.Rand) settlement {
	flips := make(map[string][]bool, len(st.Bets))
	for _, id := range st.Submitted {
		n := flipsFor(st.Bets[id].OptionID)
		seq := make([]bool, n)
		for i := range seq {
			seq[i] = rng.IntN(2) == 0
		}
		flips[id] = seq
	}
	return settleCoins(st, flips)
}

func settleCoins(st *BettingState, flips map[string][]bool) settlement {
	payouts := make(map[string]int, len(st.Bets))
	winners := 0
	for id, bet := range st.Bets {
		seq := flips[id]
		won := len(seq) > 0
		for _, heads := range seq {
			if !heads {
				won = false
				break
			}
		}
		if won {
			payouts[id] = bet.Amount * coinOdds(len(seq))
			winners++
		} else {
			payouts[id] = -bet.Amount
		}
	}
	return settlement{
		payouts:   payouts,
		narrative: fmt.Sprintf("%d of %d players flipped all heads.", winners, len(st.Bets)),
		animation: CoinAnimation{Flips: flips},
	}
}
