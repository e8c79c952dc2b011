package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLeaderboard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chips  []int
		buyIns []int
		ranks  []int
		order  []string
		prizes []int
	}{
		{
			name:   "distinct balances",
			chips:  []int{300, 900, 600},
			buyIns: []int{100, 100, 101},
			order:  []string{"p2", "p3", "p1"},
			ranks:  []int{1, 2, 3},
			prizes: []int{150, 90, 60},
		},
		{
			name:   "tie pools places",
			chips:  []int{500, 800, 800, 100},
			buyIns: []int{100, 100, 100, 100},
			order:  []string{"p2", "p3", "p1", "p4"},
			ranks:  []int{1, 1, 3, 4},
			prizes: []int{160, 160, 80, 0},
		},
		{
			name:   "odd split goes to earliest seat",
			chips:  []int{10, 10, 10},
			buyIns: []int{100, 100, 101},
			order:  []string{"p1", "p2", "p3"},
			ranks:  []int{1, 1, 1},
			prizes: []int{101, 100, 100},
		},
		{
			name:   "no buy-ins",
			chips:  []int{10, 20},
			buyIns: []int{0, 0},
			order:  []string{"p2", "p1"},
			ranks:  []int{1, 2},
			prizes: []int{0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			players := newPlayers(tt.chips...)
			for i, p := range players {
				p.BuyIn = tt.buyIns[i]
			}
			board := BuildLeaderboard(players, DefaultPrizePercents)

			var order []string
			var ranks, prizes []int
			for _, s := range board {
				order = append(order, s.PlayerID)
				ranks = append(ranks, s.Rank)
				prizes = append(prizes, s.Prize)
			}
			assert.Equal(t, tt.order, order)
			assert.Equal(t, tt.ranks, ranks)
			assert.Equal(t, tt.prizes, prizes)
		})
	}
}

func TestPhaseStages(t *testing.T) {
	t.Parallel()
	stage, ok := PhaseAuctionReveal.Stage()
	assert.True(t, ok)
	assert.Equal(t, StageAuction, stage)

	step, ok := PhaseBettingBriefing.Step()
	assert.True(t, ok)
	assert.Equal(t, StepBriefing, step)
	assert.Equal(t, PhaseBettingResult, PhaseOf(StageBetting, StepResult))

	_, ok = PhaseFinalResult.Stage()
	assert.False(t, ok)
}

func TestGameStateCloneIsIndependent(t *testing.T) {
	t.Parallel()
	gs := &GameState{
		Phase:   PhaseBettingRound,
		Betting: NewBettingState(DiceHighLow, 1, 20, 10, 2, nil),
	}
	gs.Betting.Bets["p1"] = Bet{OptionID: optionHigh, Amount: 10}
	gs.Betting.Submitted = append(gs.Betting.Submitted, "p1")

	c := gs.Clone()
	c.Betting.Bets["p2"] = Bet{OptionID: optionLow, Amount: 10}
	c.Betting.Submitted = append(c.Betting.Submitted, "p2")

	assert.Len(t, gs.Betting.Bets, 1)
	assert.Equal(t, []string{"p1"}, gs.Betting.Submitted)
	assert.Nil(t, c.Auction)
}
