package game

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
)

const (
	optionSideA = "side_a"
	optionSideB = "side_b"
)

// DefaultGroupPredictBonus is the flat reward for the closest predictions
// unless the round sets its own Bonus.
const DefaultGroupPredictBonus = 100

// GroupAnimation summarises the vote.
type GroupAnimation struct {
	SideA   int      `json:"side_a"`
	SideB   int      `json:"side_b"`
	Winners []string `json:"winners"`
}

// groupPredict asks every player to pick a side and guess how many players
// picked side A. Nothing is staked; the closest guesses earn a bonus that is
// created rather than taken from anyone.
type groupPredict struct{}

func (groupPredict) options() []Option {
	return []Option{
		{ID: optionSideA, Label: "Side A"},
		{ID: optionSideB, Label: "Side B"},
	}
}

func (groupPredict) prepare(st *BettingState, _ *rand.Rand) {
	st.Bonus = DefaultGroupPredictBonus
}

func (groupPredict) resolve(st *BettingState, _ *rand.Rand) settlement {
	return settleGroup(st, st.Bonus)
}

func settleGroup(st *BettingState, bonus int) settlement {
	sideA := 0
	for _, bet := range st.Bets {
		if bet.OptionID == optionSideA {
			sideA++
		}
	}

	best := -1
	for _, bet := range st.Bets {
		guess, _ := strconv.Atoi(bet.ChoiceID)
		if d := abs(guess - sideA); best < 0 || d < best {
			best = d
		}
	}

	payouts := make(map[string]int, len(st.Bets))
	var winners []string
	for _, id := range st.Submitted {
		guess, _ := strconv.Atoi(st.Bets[id].ChoiceID)
		if abs(guess-sideA) == best {
			payouts[id] = bonus
			winners = append(winners, id)
		} else {
			payouts[id] = 0
		}
	}

	return settlement{
		winning:   strconv.Itoa(sideA),
		payouts:   payouts,
		narrative: fmt.Sprintf("%d players chose side A; %d closest guesses win %d.", sideA, len(winners), bonus),
		animation: GroupAnimation{SideA: sideA, SideB: len(st.Bets) - sideA, Winners: winners},
		unbanked:  true,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
