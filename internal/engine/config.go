package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/partybets/internal/game"
)

// Config holds the rules a session runs with. It is fixed for the lifetime
// of the session.
type Config struct {
	Capacity     int
	MinPlayers   int
	InitialStake int

	BettingRounds int
	AuctionRounds int
	// BetTypes is the pool of mini-games. It is shuffled once per game and
	// cycled through if there are more rounds than types.
	BetTypes []game.BetType

	BettingTime time.Duration
	AuctionTime time.Duration
	IntroDelay  time.Duration
	RevealDelay time.Duration
	ResultDelay time.Duration
	// BriefingTimeout forces a briefing to end without every ack. Zero waits
	// for acknowledgements indefinitely.
	BriefingTimeout time.Duration
	StartCountdown  time.Duration

	MinBetPct           int
	HighStakesRounds    int
	HighStakesMinBetPct int
	MinBid              int
	GroupPredictBonus   int
	PrizePercents       []int
	Boxes               game.BoxDistribution

	BotMinDelay time.Duration
	BotMaxDelay time.Duration
	BotStrategy string

	// Seed fixes the session RNG. Zero picks a random seed.
	Seed int64
	// SinkTimeout bounds handing a finished game to the log sink.
	SinkTimeout time.Duration
}

// DefaultConfig returns the standard party rules.
func DefaultConfig() Config {
	return Config{
		Capacity:            10,
		MinPlayers:          2,
		InitialStake:        1000,
		BettingRounds:       6,
		AuctionRounds:       game.DefaultBoxDistribution.Total(),
		BetTypes:            game.BetTypes(),
		BettingTime:         20 * time.Second,
		AuctionTime:         15 * time.Second,
		IntroDelay:          4 * time.Second,
		RevealDelay:         5 * time.Second,
		ResultDelay:         5 * time.Second,
		StartCountdown:      3 * time.Second,
		MinBetPct:           10,
		HighStakesRounds:    1,
		HighStakesMinBetPct: 20,
		MinBid:              10,
		GroupPredictBonus:   game.DefaultGroupPredictBonus,
		PrizePercents:       append([]int(nil), game.DefaultPrizePercents...),
		Boxes:               game.DefaultBoxDistribution,
		BotMinDelay:         time.Second,
		BotMaxDelay:         3 * time.Second,
		BotStrategy:         "random",
		SinkTimeout:         10 * time.Second,
	}
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Capacity >= 1, "capacity must be at least 1")
	check(c.MinPlayers >= 1 && c.MinPlayers <= c.Capacity, "min players must be between 1 and capacity (%d)", c.Capacity)
	check(c.InitialStake > 0, "initial stake must be positive")
	check(c.BettingRounds >= 1, "betting rounds must be at least 1")
	check(c.AuctionRounds >= 1, "auction rounds must be at least 1")
	check(c.AuctionRounds <= c.Boxes.Total(), "auction rounds (%d) exceed boxes (%d)", c.AuctionRounds, c.Boxes.Total())
	check(len(c.BetTypes) > 0, "at least one bet type is required")
	check(c.BettingTime >= time.Second && c.AuctionTime >= time.Second, "round times must be at least 1s")
	check(c.IntroDelay > 0 && c.RevealDelay > 0 && c.ResultDelay > 0, "phase delays must be positive")
	check(c.BriefingTimeout >= 0 && c.StartCountdown >= 0, "timeouts must not be negative")
	check(c.MinBetPct >= 0 && c.MinBetPct <= 100, "min bet percent must be 0-100")
	check(c.HighStakesMinBetPct >= 0 && c.HighStakesMinBetPct <= 100, "high stakes percent must be 0-100")
	check(c.HighStakesRounds >= 0, "high stakes rounds must not be negative")
	check(c.MinBid >= 1, "min bid must be at least 1")
	check(c.GroupPredictBonus >= 0, "group predict bonus must not be negative")
	check(c.BotMinDelay > 0 && c.BotMaxDelay >= c.BotMinDelay, "bot delays must satisfy 0 < min <= max")
	check(c.SinkTimeout > 0, "sink timeout must be positive")

	total := 0
	for _, p := range c.PrizePercents {
		check(p >= 0, "prize percents must not be negative")
		total += p
	}
	check(total <= 100, "prize percents add up to %d%%", total)

	if _, err := resolveStrategy(c.BotStrategy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
