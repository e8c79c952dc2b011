package game

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
)

// DiceAnimation is sent with dice results so the display can replay the roll.
type DiceAnimation struct {
	Dice   []int `json:"dice"`
	Sum    int   `json:"sum"`
	Triple bool  `json:"triple,omitempty"`
}

const (
	optionHigh = "high"
	optionLow  = "low"

	// OutcomeTriple is the winning option id reported when three dice match.
	OutcomeTriple = "triple"
)

func rollDie(rng *rand.Rand) int {
	return rng.IntN(6) + 1
}

// diceHighLow rolls three dice. Sums of 11 and above are high. Any triple
// loses every bet.
type diceHighLow struct{}

func (diceHighLow) options() []Option {
	return []Option{
		{ID: optionHigh, Label: "High (11-18)", Odds: 1},
		{ID: optionLow, Label: "Low (3-10)", Odds: 1},
	}
}

func (diceHighLow) prepare(*BettingState, *rand.Rand) {}

func (diceHighLow) resolve(st *BettingState, rng *rand.Rand) settlement {
	return settleHighLow(st, [3]int{rollDie(rng), rollDie(rng), rollDie(rng)})
}

func settleHighLow(st *BettingState, dice [3]int) settlement {
	sum := dice[0] + dice[1] + dice[2]
	anim := DiceAnimation{Dice: dice[:], Sum: sum}

	if dice[0] == dice[1] && dice[1] == dice[2] {
		anim.Triple = true
		return settlement{
			winning:   OutcomeTriple,
			payouts:   fixedOdds(st, func(Bet) bool { return false }),
			narrative: fmt.Sprintf("Triple %ds! Every bet loses.", dice[0]),
			animation: anim,
		}
	}

	winning := optionLow
	if sum >= 11 {
		winning = optionHigh
	}
	return settlement{
		winning:   winning,
		payouts:   fixedOdds(st, func(b Bet) bool { return b.OptionID == winning }),
		narrative: fmt.Sprintf("The dice show %d: %s wins.", sum, winning),
		animation: anim,
	}
}

// diceExact rolls two dice. Exact sums pay more the rarer they are; the two
// range buckets pay evens.
type diceExact struct{}

var exactSumOdds = map[int]int{2: 30, 3: 15, 4: 10, 5: 6, 6: 5, 7: 4, 8: 5, 9: 6, 10: 10, 11: 15, 12: 30}

const (
	optionRangeLow  = "range_low"
	optionRangeHigh = "range_high"
)

func sumOptionID(sum int) string {
	return "sum_" + strconv.Itoa(sum)
}

func (diceExact) options() []Option {
	opts := make([]Option, 0, 13)
	for sum := 2; sum <= 12; sum++ {
		opts = append(opts, Option{ID: sumOptionID(sum), Label: "Exactly " + strconv.Itoa(sum), Odds: exactSumOdds[sum]})
	}
	return append(opts,
		Option{ID: optionRangeLow, Label: "2 to 6", Odds: 1},
		Option{ID: optionRangeHigh, Label: "8 to 12", Odds: 1},
	)
}

func (diceExact) prepare(*BettingState, *rand.Rand) {}

func (diceExact) resolve(st *BettingState, rng *rand.Rand) settlement {
	return settleExact(st, [2]int{rollDie(rng), rollDie(rng)})
}

func settleExact(st *BettingState, dice [2]int) settlement {
	sum := dice[0] + dice[1]
	exact := sumOptionID(sum)
	wins := func(b Bet) bool {
		switch b.OptionID {
		case exact:
			return true
		case optionRangeLow:
			return sum <= 6
		case optionRangeHigh:
			return sum >= 8
		}
		return false
	}
	return settlement{
		winning:   exact,
		payouts:   fixedOdds(st, wins),
		narrative: fmt.Sprintf("%d and %d make %d.", dice[0], dice[1], sum),
		animation: DiceAnimation{Dice: dice[:], Sum: sum},
	}
}
