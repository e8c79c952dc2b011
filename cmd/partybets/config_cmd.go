package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lox/partybets/internal/config"
)

// ConfigCmd checks a config file and shows the rules it resolves to
type ConfigCmd struct {
	Path string `arg:"" optional:"" default:"partybets.hcl" help:"HCL config file"`
}

func (c *ConfigCmd) Run() error {
	cfg, err := config.Load(c.Path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	rules, err := cfg.Engine()
	if err != nil {
		return err
	}

	betTypes := make([]string, len(rules.BetTypes))
	for i, bt := range rules.BetTypes {
		betTypes[i] = bt.String()
	}

	rows := [][]string{
		{"address", cfg.Address()},
		{"room", cfg.Server.Room},
		{"allowed origins", strings.Join(cfg.Server.AllowedOrigins, ", ")},
		{"capacity", fmt.Sprint(rules.Capacity)},
		{"min players", fmt.Sprint(rules.MinPlayers)},
		{"initial stake", fmt.Sprint(rules.InitialStake)},
		{"betting rounds", fmt.Sprint(rules.BettingRounds)},
		{"auction rounds", fmt.Sprint(rules.AuctionRounds)},
		{"bet types", strings.Join(betTypes, ", ")},
		{"betting time", rules.BettingTime.String()},
		{"auction time", rules.AuctionTime.String()},
		{"min bet", fmt.Sprintf("%d%% (%d%% for the last %d rounds)", rules.MinBetPct, rules.HighStakesMinBetPct, rules.HighStakesRounds)},
		{"min bid", fmt.Sprint(rules.MinBid)},
		{"boxes", fmt.Sprintf("%d diamond, %d normal, %d bomb, %d mystery", rules.Boxes.Diamond, rules.Boxes.Normal, rules.Boxes.Bomb, rules.Boxes.Mystery)},
		{"prizes", fmt.Sprint(rules.PrizePercents)},
		{"bots", fmt.Sprintf("%s, %s-%s", rules.BotStrategy, rules.BotMinDelay, rules.BotMaxDelay)},
		{"postgres sink", enabled(cfg.Sinks.PostgresDSN != "")},
		{"nats sink", enabled(cfg.Sinks.NATSURL != "")},
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Setting", "Value").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Inherit(cellStyle)
			}
			return cellStyle
		})
	fmt.Fprintln(os.Stdout, t.String())
	return nil
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
