package main

import (
	"context"
	"fmt"

	"github.com/lox/partybets/cmd/partybets/shared"
	"github.com/lox/partybets/internal/config"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/gamelog"
	"github.com/lox/partybets/internal/server"
	"github.com/rs/zerolog"
)

// ServerCmd runs the WebSocket server with one main room
type ServerCmd struct {
	Config      string `kong:"default='partybets.hcl',env='PARTYBETS_CONFIG',help='HCL config file; built-in defaults apply if it does not exist'"`
	Addr        string `kong:"env='PARTYBETS_ADDR',help='Listen address, overriding the config file'"`
	Debug       bool   `kong:"help='Enable debug logging'"`
	JSONLogs    bool   `kong:"name='json-logs',help='Log JSON instead of console output'"`
	Seed        *int64 `kong:"help='Deterministic RNG seed for every game (optional)'"`
	PostgresDSN string `kong:"name='postgres-dsn',env='DATABASE_URL',help='Record finished games in Postgres'"`
	NATSURL     string `kong:"name='nats-url',env='NATS_URL',help='Publish finished games to NATS'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.JSONLogs {
		cfg.Log.Format = "json"
	}
	if c.PostgresDSN != "" {
		cfg.Sinks.PostgresDSN = c.PostgresDSN
	}
	if c.NATSURL != "" {
		cfg.Sinks.NATSURL = c.NATSURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", c.Config, err)
	}

	logger, err := shared.NewLogger(cfg.Log.Level, cfg.Log.Format, c.Debug)
	if err != nil {
		return err
	}

	rules, err := cfg.Engine()
	if err != nil {
		return err
	}
	if c.Seed != nil {
		rules.Seed = *c.Seed
		logger.Info().Int64("seed", rules.Seed).Msg("Using deterministic seed")
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	sink, closeSinks, err := openSinks(ctx, cfg.Sinks, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	srv := server.NewServer(logger, server.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	registry := engine.NewRegistry(logger, rules,
		engine.WithBroadcaster(srv),
		engine.WithSink(sink),
	)
	defer registry.StopAll()
	srv.SetRegistry(registry)

	if _, err := registry.Create(cfg.Server.Room); err != nil {
		return fmt.Errorf("create room %s: %w", cfg.Server.Room, err)
	}

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger.Info().
		Str("address", addr).
		Str("room", cfg.Server.Room).
		Int("capacity", rules.Capacity).
		Int("betting_rounds", rules.BettingRounds).
		Int("auction_rounds", rules.AuctionRounds).
		Dur("betting_time", rules.BettingTime).
		Dur("auction_time", rules.AuctionTime).
		Str("bot_strategy", rules.BotStrategy).
		Msg("Starting partybets server")

	return srv.ListenAndServe(ctx, addr)
}

// openSinks connects every configured summary sink. The log sink is always
// present. The returned func releases the connections.
func openSinks(ctx context.Context, settings *config.SinkSettings, logger zerolog.Logger) (gamelog.Sink, func(), error) {
	sinks := gamelog.Multi{gamelog.NewLogSink(logger)}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if settings.PostgresDSN != "" {
		pg, err := gamelog.NewPostgresSink(ctx, settings.PostgresDSN)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, pg.Close)
		sinks = append(sinks, pg)
		logger.Info().Msg("Recording finished games in Postgres")
	}

	if settings.NATSURL != "" {
		nc, err := gamelog.ConnectNATS(settings.NATSURL, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = nc.Drain() })
		sinks = append(sinks, gamelog.NewNATSSink(nc, settings.NATSSubject))
		logger.Info().Str("subject", settings.NATSSubject).Msg("Publishing finished games to NATS")
	}

	return sinks, closeAll, nil
}
