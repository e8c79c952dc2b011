package game

import (
	"slices"
)

// DefaultPrizePercents splits the buy-in pool between the top three places.
var DefaultPrizePercents = []int{50, 30, 20}

// Standing is one line of the final leaderboard.
type Standing struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Bot      bool   `json:"bot,omitempty"`
	Chips    int    `json:"chips"`
	Rank     int    `json:"rank"`
	BuyIn    int    `json:"buy_in,omitempty"`
	Prize    int    `json:"prize"`
}

// BuildLeaderboard ranks players by balance. Equal balances share a rank and
// keep seating order. The prize pool is the sum of buy-ins; percents[i] is
// the share for the (i+1)th place. Tied players pool the percentages of the
// places they occupy and split the amount evenly, the earliest listed player
// taking any remainder.
func BuildLeaderboard(players []*Player, percents []int) []Standing {
	out := make([]Standing, len(players))
	pool := 0
	for i, p := range players {
		out[i] = Standing{
			PlayerID: p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Bot:      p.Bot,
			Chips:    p.Chips,
			BuyIn:    p.BuyIn,
		}
		pool += p.BuyIn
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		return b.Chips - a.Chips
	})

	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].Chips == out[start].Chips {
			end++
		}
		pct := 0
		for place := start; place < end && place < len(percents); place++ {
			pct += percents[place]
		}
		amount := pool * pct / 100
		n := end - start
		base, rem := amount/n, amount%n
		for i := start; i < end; i++ {
			out[i].Rank = start + 1
			out[i].Prize = base
			if i-start < rem {
				out[i].Prize++
			}
		}
		start = end
	}
	return out
}
