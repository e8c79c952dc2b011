// Package config loads the HCL configuration file of the party server.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/gamelog"
)

// Config represents the complete server configuration
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Game   *GameSettings   `hcl:"game,block"`
	Bots   *BotSettings    `hcl:"bots,block"`
	Sinks  *SinkSettings   `hcl:"sinks,block"`
	Log    *LogSettings    `hcl:"log,block"`
}

// ServerSettings contains the listener and main room settings
type ServerSettings struct {
	Address        string   `hcl:"address,optional"`
	Port           int      `hcl:"port,optional"`
	Room           string   `hcl:"room,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

// GameSettings holds the rules every room runs with. Durations are Go
// duration strings such as "20s".
type GameSettings struct {
	Capacity      int      `hcl:"capacity,optional"`
	MinPlayers    int      `hcl:"min_players,optional"`
	InitialStake  int      `hcl:"initial_stake,optional"`
	BettingRounds int      `hcl:"betting_rounds,optional"`
	AuctionRounds int      `hcl:"auction_rounds,optional"`
	BetTypes      []string `hcl:"bet_types,optional"`

	BettingTime     string `hcl:"betting_time,optional"`
	AuctionTime     string `hcl:"auction_time,optional"`
	IntroDelay      string `hcl:"intro_delay,optional"`
	RevealDelay     string `hcl:"reveal_delay,optional"`
	ResultDelay     string `hcl:"result_delay,optional"`
	BriefingTimeout string `hcl:"briefing_timeout,optional"`
	StartCountdown  string `hcl:"start_countdown,optional"`

	MinBetPct           int   `hcl:"min_bet_pct,optional"`
	HighStakesRounds    *int  `hcl:"high_stakes_rounds,optional"`
	HighStakesMinBetPct int   `hcl:"high_stakes_min_bet_pct,optional"`
	MinBid              int   `hcl:"min_bid,optional"`
	GroupPredictBonus   *int  `hcl:"group_predict_bonus,optional"`
	PrizePercents       []int `hcl:"prize_percents,optional"`
	Seed                int64 `hcl:"seed,optional"`

	Boxes *BoxSettings `hcl:"boxes,block"`
}

// BoxSettings is how many auction boxes of each kind a game uses.
type BoxSettings struct {
	Diamond int `hcl:"diamond,optional"`
	Normal  int `hcl:"normal,optional"`
	Bomb    int `hcl:"bomb,optional"`
	Mystery int `hcl:"mystery,optional"`
}

// BotSettings controls seated bots
type BotSettings struct {
	Strategy string `hcl:"strategy,optional"`
	MinDelay string `hcl:"min_delay,optional"`
	MaxDelay string `hcl:"max_delay,optional"`
}

// SinkSettings selects where completed games are recorded. Every sink is
// optional; the log sink is always on.
type SinkSettings struct {
	PostgresDSN string `hcl:"postgres_dsn,optional"`
	NATSURL     string `hcl:"nats_url,optional"`
	NATSSubject string `hcl:"nats_subject,optional"`
	Timeout     string `hcl:"timeout,optional"`
}

type LogSettings struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	return decode(file.Body)
}

// Parse decodes HCL source held in memory. filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (*Config, error) {
	var cfg Config
	if diags := gohcl.DecodeBody(body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills every block and setting left out of the file.
func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Bots == nil {
		c.Bots = &BotSettings{}
	}
	if c.Sinks == nil {
		c.Sinks = &SinkSettings{}
	}
	if c.Log == nil {
		c.Log = &LogSettings{}
	}

	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Room == "" {
		c.Server.Room = "MAIN"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Game.Boxes == nil {
		b := game.DefaultBoxDistribution
		c.Game.Boxes = &BoxSettings{Diamond: b.Diamond, Normal: b.Normal, Bomb: b.Bomb, Mystery: b.Mystery}
	}

	if c.Bots.Strategy == "" {
		c.Bots.Strategy = "random"
	}
	if c.Sinks.NATSSubject == "" {
		c.Sinks.NATSSubject = gamelog.DefaultSubject
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate validates the settings that engine.Config.Validate does not see.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be console or json, got %q", c.Log.Format))
	}
	if _, err := c.Engine(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// Engine converts the game, bots and sinks blocks into session rules,
// starting from engine.DefaultConfig. The result is validated.
func (c *Config) Engine() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	g := c.Game
	var errs []error

	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, name, v string) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	setInt(&cfg.Capacity, g.Capacity)
	setInt(&cfg.MinPlayers, g.MinPlayers)
	setInt(&cfg.InitialStake, g.InitialStake)
	setInt(&cfg.BettingRounds, g.BettingRounds)
	setInt(&cfg.MinBetPct, g.MinBetPct)
	setInt(&cfg.HighStakesMinBetPct, g.HighStakesMinBetPct)
	setInt(&cfg.MinBid, g.MinBid)
	if g.HighStakesRounds != nil {
		cfg.HighStakesRounds = *g.HighStakesRounds
	}
	if g.GroupPredictBonus != nil {
		cfg.GroupPredictBonus = *g.GroupPredictBonus
	}
	if len(g.PrizePercents) > 0 {
		cfg.PrizePercents = append([]int(nil), g.PrizePercents...)
	}
	cfg.Seed = g.Seed

	cfg.Boxes = game.BoxDistribution{
		Diamond: g.Boxes.Diamond,
		Normal:  g.Boxes.Normal,
		Bomb:    g.Boxes.Bomb,
		Mystery: g.Boxes.Mystery,
	}
	// One auction per box unless the file asks for fewer.
	cfg.AuctionRounds = cfg.Boxes.Total()
	setInt(&cfg.AuctionRounds, g.AuctionRounds)

	if len(g.BetTypes) > 0 {
		cfg.BetTypes = cfg.BetTypes[:0:0]
		for _, name := range g.BetTypes {
			bt, err := game.ParseBetType(name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			cfg.BetTypes = append(cfg.BetTypes, bt)
		}
	}

	setDuration(&cfg.BettingTime, "betting_time", g.BettingTime)
	setDuration(&cfg.AuctionTime, "auction_time", g.AuctionTime)
	setDuration(&cfg.IntroDelay, "intro_delay", g.IntroDelay)
	setDuration(&cfg.RevealDelay, "reveal_delay", g.RevealDelay)
	setDuration(&cfg.ResultDelay, "result_delay", g.ResultDelay)
	setDuration(&cfg.BriefingTimeout, "briefing_timeout", g.BriefingTimeout)
	setDuration(&cfg.StartCountdown, "start_countdown", g.StartCountdown)
	setDuration(&cfg.BotMinDelay, "bots.min_delay", c.Bots.MinDelay)
	setDuration(&cfg.BotMaxDelay, "bots.max_delay", c.Bots.MaxDelay)
	setDuration(&cfg.SinkTimeout, "sinks.timeout", c.Sinks.Timeout)
	cfg.BotStrategy = c.Bots.Strategy

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("game: %w", err)
	}
	return cfg, nil
}
