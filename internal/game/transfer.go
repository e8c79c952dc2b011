package game

// takeEvenly collects amount from sources in one pass. Shares are split as
// evenly as possible with the remainder assigned one unit at a time in
// seating order, and each source pays at most its current balance. It
// returns the amount actually collected and records each payment as a
// negative entry in deltas.
func takeEvenly(sources []*Player, amount int, deltas map[string]int) int {
	if amount <= 0 || len(sources) == 0 {
		return 0
	}
	base, rem := amount/len(sources), amount%len(sources)
	taken := 0
	for i, p := range sources {
		share := base
		if i < rem {
			share++
		}
		if share > p.Chips {
			share = p.Chips
		}
		if share <= 0 {
			continue
		}
		p.Chips -= share
		deltas[p.ID] -= share
		taken += share
	}
	return taken
}

// giveEvenly splits amount across recipients using the same remainder rule
// as takeEvenly.
func giveEvenly(recipients []*Player, amount int, deltas map[string]int) {
	if amount <= 0 || len(recipients) == 0 {
		return
	}
	base, rem := amount/len(recipients), amount%len(recipients)
	for i, p := range recipients {
		share := base
		if i < rem {
			share++
		}
		if share == 0 {
			continue
		}
		p.Chips += share
		deltas[p.ID] += share
	}
}

// collectAll keeps taking even shares from players that still hold chips
// until amount is covered or the table is empty.
func collectAll(players []*Player, amount int, deltas map[string]int) int {
	remaining := amount
	for remaining > 0 {
		var payers []*Player
		for _, p := range players {
			if p.Chips > 0 {
				payers = append(payers, p)
			}
		}
		taken := takeEvenly(payers, remaining, deltas)
		if taken == 0 {
			break
		}
		remaining -= taken
	}
	return amount - remaining
}

// transfer moves up to amount from one player to another, capped by the
// payer's balance.
func transfer(from, to *Player, amount int, deltas map[string]int) int {
	if amount > from.Chips {
		amount = from.Chips
	}
	if amount <= 0 {
		return 0
	}
	from.Chips -= amount
	to.Chips += amount
	deltas[from.ID] -= amount
	deltas[to.ID] += amount
	return amount
}

func others(players []*Player, id string) []*Player {
	out := make([]*Player, 0, len(players))
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func findPlayer(players []*Player, id string) *Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
