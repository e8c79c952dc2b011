package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lox/partybets/cmd/partybets/shared"
	"github.com/lox/partybets/internal/config"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/gamelog"
	"github.com/lox/partybets/internal/protocol"
	"github.com/rs/zerolog"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	winnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// SimulateCmd plays one game between bots only
type SimulateCmd struct {
	Config   string        `kong:"default='partybets.hcl',env='PARTYBETS_CONFIG',help='HCL config file for the game rules'"`
	Bots     int           `kong:"default='4',help='Number of bots to seat'"`
	Strategy string        `kong:"help='Bot strategy, overriding the config file (random or cautious)'"`
	Seed     *int64        `kong:"help='Deterministic RNG seed (optional)'"`
	Realtime bool          `kong:"help='Keep the configured phase timings instead of compressing them'"`
	Timeout  time.Duration `kong:"default='10m',help='Give up if the game has not finished by then'"`
	Debug    bool          `kong:"help='Enable debug logging'"`
}

func (c *SimulateCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	logger, err := shared.NewLogger(cfg.Log.Level, cfg.Log.Format, c.Debug)
	if err != nil {
		return err
	}
	rules, err := cfg.Engine()
	if err != nil {
		return err
	}
	if c.Strategy != "" {
		rules.BotStrategy = c.Strategy
	}
	if c.Seed != nil {
		rules.Seed = *c.Seed
	}
	if !c.Realtime {
		rules = compressTimings(rules)
	}
	rules.Capacity = max(rules.Capacity, c.Bots)

	ctx, cancel := context.WithTimeout(shared.SetupSignalHandlerWithLogger(logger), c.Timeout)
	defer cancel()

	final, err := runSimulation(ctx, rules, c.Bots, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, renderLeaderboard(final.Leaderboard))
	return nil
}

// compressTimings shortens every delay so a whole game plays out in a few
// seconds. Rounds still close early once every bot has acted.
func compressTimings(r engine.Config) engine.Config {
	r.BettingTime = time.Second
	r.AuctionTime = time.Second
	r.IntroDelay = 10 * time.Millisecond
	r.RevealDelay = 10 * time.Millisecond
	r.ResultDelay = 10 * time.Millisecond
	r.BriefingTimeout = 0
	r.StartCountdown = 0
	r.BotMinDelay = 5 * time.Millisecond
	r.BotMaxDelay = 25 * time.Millisecond
	return r
}

// simulationWatcher logs round results and hands over the final result.
type simulationWatcher struct {
	logger zerolog.Logger
	final  chan protocol.FinalResult
}

func (w *simulationWatcher) Broadcast(_, _ string, payload any) {
	switch p := payload.(type) {
	case protocol.BettingResult:
		w.logger.Info().
			Int("round", p.Result.Round).
			Str("type", p.Result.Type.String()).
			Str("winning", p.Result.WinningOptionID).
			Msg(p.Result.Narrative)
	case protocol.AuctionResult:
		w.logger.Info().
			Int("round", p.Result.Round).
			Str("box", p.Result.Box.Kind.String()).
			Int("winning_bid", p.Result.WinningBid).
			Msg(p.Result.Narrative)
	case protocol.FinalResult:
		select {
		case w.final <- p:
		default:
		}
	}
}

// runSimulation seats bots in a fresh room, starts the game and waits for
// the final result.
func runSimulation(ctx context.Context, rules engine.Config, bots int, logger zerolog.Logger) (protocol.FinalResult, error) {
	if bots < rules.MinPlayers {
		return protocol.FinalResult{}, fmt.Errorf("need at least %d bots, got %d", rules.MinPlayers, bots)
	}

	watcher := &simulationWatcher{
		logger: logger.With().Str("component", "simulate").Logger(),
		final:  make(chan protocol.FinalResult, 1),
	}
	sess, err := engine.NewSession("SIM", rules,
		engine.WithBroadcaster(watcher),
		engine.WithSink(gamelog.NewLogSink(logger)),
		engine.WithLogger(logger),
	)
	if err != nil {
		return protocol.FinalResult{}, err
	}
	sess.Start()
	defer sess.Stop()

	if _, err := sess.AddBots(ctx, bots); err != nil {
		return protocol.FinalResult{}, err
	}
	if err := sess.StartGame(ctx); err != nil {
		return protocol.FinalResult{}, err
	}

	select {
	case final := <-watcher.final:
		return final, nil
	case <-ctx.Done():
		return protocol.FinalResult{}, fmt.Errorf("game did not finish: %w", ctx.Err())
	}
}

func renderLeaderboard(standings []game.Standing) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Rank", "Player", "Chips", "Prize").
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Inherit(cellStyle)
			case row < len(standings) && standings[row].Rank == 1:
				return winnerStyle.Inherit(cellStyle)
			default:
				return cellStyle
			}
		})

	for _, s := range standings {
		t.Row(
			strconv.Itoa(s.Rank),
			s.Name,
			strconv.Itoa(s.Chips),
			strconv.Itoa(s.Prize),
		)
	}
	return t.String()
}
