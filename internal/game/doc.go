// Package game implements the round rules of the party game: the data model
// shared by every room, the six betting mini-games, the sealed-bid auction
// and the final leaderboard.
//
// Nothing in this package is safe for concurrent use. A room's state is owned
// by a single session goroutine (see internal/engine) and every function here
// is called from that goroutine.
//
// # Rounds
//
// A betting round is described by a BettingState built with NewBettingState.
// Players place at most one bet each with Place; once the round closes,
// ResolveBetting draws fresh randomness and settles every bet:
//
//	st := game.NewBettingState(game.CoinMultiply, 1, 20, 10, len(players), rng)
//	_ = st.Place(player, game.Bet{OptionID: "flip_2", Amount: 100})
//	res := game.ResolveBetting(st, players, rng)
//
// Auction rounds work the same way with NewAuctionState, PlaceBid and
// ResolveAuction. The box sequence for a whole game is produced once by
// GenerateBoxes.
//
// # Chip conservation
//
// Every betting round except group_predict and every auction round is
// zero-sum: the chips gained by some players are exactly the chips lost by
// others. Betting payouts are applied first and the round's net imbalance is
// then banked by the whole table (see bankRound). Balances are never left
// negative.
//
// # Deterministic testing
//
// Each mini-game splits into a draw step that consumes randomness and a
// settle step that is a pure function of the drawn outcome, so tests can
// settle fixed outcomes such as a triple of fours directly.
package game
