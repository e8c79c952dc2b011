package game

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
)

// mysteryMultipliers are dealt face down to the boxes each round. Zero is
// the bomb.
var mysteryMultipliers = []int{0, 2, 3, 5}

// MysteryAnimation reveals every box and how many players shared it.
type MysteryAnimation struct {
	Multipliers map[string]int `json:"multipliers"`
	Pickers     map[string]int `json:"pickers"`
}

// mysteryPick hides a multiplier in each box. Players that pick the same box
// share its multiplier; the bomb costs each of its pickers their full stake.
type mysteryPick struct{}

func (mysteryPick) options() []Option {
	opts := make([]Option, len(mysteryMultipliers))
	for i := range opts {
		id := "box_" + strconv.Itoa(i+1)
		opts[i] = Option{ID: id, Label: "Box " + strconv.Itoa(i+1)}
	}
	return opts
}

func (mysteryPick) prepare(st *BettingState, rng *rand.Rand) {
	st.multipliers = append([]int(nil), mysteryMultipliers...)
	rng.Shuffle(len(st.multipliers), func(i, j int) {
		st.multipliers[i], st.multipliers[j] = st.multipliers[j], st.multipliers[i]
	})
}

func (mysteryPick) resolve(st *BettingState, _ *rand.Rand) settlement {
	return settleMystery(st, st.multipliers)
}

func settleMystery(st *BettingState, multipliers []int) settlement {
	byBox := make(map[string]int, len(st.Options))
	best := ""
	for i, o := range st.Options {
		byBox[o.ID] = multipliers[i]
		if best == "" || multipliers[i] > byBox[best] {
			best = o.ID
		}
	}

	pickers := make(map[string]int)
	for _, bet := range st.Bets {
		pickers[bet.OptionID]++
	}

	payouts := make(map[string]int, len(st.Bets))
	bombed := 0
	for id, bet := range st.Bets {
		m := byBox[bet.OptionID]
		if m == 0 {
			payouts[id] = -bet.Amount
			bombed++
			continue
		}
		payouts[id] = bet.Amount*m/pickers[bet.OptionID] - bet.Amount
	}

	return settlement{
		winning:   best,
		payouts:   payouts,
		narrative: fmt.Sprintf("The best box was %s (%dx); %d players hit the bomb.", best, byBox[best], bombed),
		animation: MysteryAnimation{Multipliers: byBox, Pickers: pickers},
	}
}
