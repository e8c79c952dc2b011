package game

import (
	"fmt"
	rand "math/rand/v2"
)

type segment struct {
	id     string
	label  string
	odds   int
	weight int
}

// wheel is fixed: eight segments, bigger segments pay less.
var wheel = []segment{
	{"red", "Red", 1, 7},
	{"black", "Black", 1, 7},
	{"blue", "Blue", 2, 5},
	{"green", "Green", 2, 5},
	{"purple", "Purple", 4, 3},
	{"orange", "Orange", 4, 3},
	{"gold", "Gold", 9, 2},
	{"jackpot", "Jackpot", 19, 1},
}

// RouletteAnimation tells the display where the wheel stops.
type RouletteAnimation struct {
	SegmentID string `json:"segment_id"`
	Index     int    `json:"index"`
	Weights   []int  `json:"weights"`
}

type roulette struct{}

func (roulette) options() []Option {
	opts := make([]Option, len(wheel))
	for i, s := range wheel {
		opts[i] = Option{ID: s.id, Label: s.label, Odds: s.odds}
	}
	return opts
}

func (roulette) prepare(*BettingState, *rand.Rand) {}

func (roulette) resolve(st *BettingState, rng *rand.Rand) settlement {
	return settleRoulette(st, spinWheel(rng))
}

func spinWheel(rng *rand.Rand) int {
	total := 0
	for _, s := range wheel {
		total += s.weight
	}
	n := rng.IntN(total)
	for i, s := range wheel {
		if n < s.weight {
			return i
		}
		n -= s.weight
	}
	return len(wheel) - 1
}

func settleRoulette(st *BettingState, index int) settlement {
	seg := wheel[index]
	weights := make([]int, len(wheel))
	for i, s := range wheel {
		weights[i] = s.weight
	}
	return settlement{
		winning:   seg.id,
		payouts:   fixedOdds(st, func(b Bet) bool { return b.OptionID == seg.id }),
		narrative: fmt.Sprintf("The wheel stops on %s (%dx).", seg.label, seg.odds),
		animation: RouletteAnimation{SegmentID: seg.id, Index: index, Weights: weights},
	}
}
