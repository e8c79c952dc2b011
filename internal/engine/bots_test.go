package engine

import (
	"strconv"
	"testing"

	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"", "random"},
		{"random", "random"},
		{"Cautious", "cautious"},
	}
	for _, tt := range tests {
		s, err := resolveStrategy(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Name())
	}

	_, err := resolveStrategy("psychic")
	require.Error(t, err)
}

// Every decision a strategy makes must pass the same validation a human
// submission goes through.
func TestStrategiesMakeValidBets(t *testing.T) {
	t.Parallel()

	for _, strategy := range []botStrategy{randomStrategy{}, cautiousStrategy{}} {
		t.Run(strategy.Name(), func(t *testing.T) {
			t.Parallel()
			rng := randutil.New(7)
			for _, bt := range game.BetTypes() {
				for i := range 50 {
					p := &game.Player{ID: "bot", Chips: 1 + i*37}
					st := game.NewBettingState(bt, 1, 20, 10, 4, rng)
					bet, ok := strategy.Bet(st, p, rng)
					if !ok {
						assert.False(t, bt == game.GroupPredict, "bots always predict")
						continue
					}
					require.NoError(t, st.Place(p, bet), "%s bet %+v", bt, bet)
					if bt == game.GroupPredict {
						n, err := strconv.Atoi(bet.ChoiceID)
						require.NoError(t, err)
						assert.LessOrEqual(t, n, st.Seats)
					}
				}
			}
		})
	}
}

func TestStrategiesMakeValidBids(t *testing.T) {
	t.Parallel()

	box := game.AuctionBox{ID: "box-1", Kind: game.BoxNormal, ValuePct: 50}
	for _, strategy := range []botStrategy{randomStrategy{}, cautiousStrategy{}} {
		t.Run(strategy.Name(), func(t *testing.T) {
			t.Parallel()
			rng := randutil.New(11)
			passed := 0
			for i := range 100 {
				p := &game.Player{ID: "bot", Chips: i * 13}
				st := game.NewAuctionState(1, box, 15, 10, 0)
				amount := strategy.Bid(st, p, rng)
				if p.Chips < st.MinBid {
					assert.Zero(t, amount, "broke bots pass")
				}
				if amount == 0 {
					passed++
				}
				require.NoError(t, st.PlaceBid(p, amount))
			}
			assert.Positive(t, passed)
		})
	}
}
