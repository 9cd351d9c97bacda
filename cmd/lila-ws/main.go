package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fitztrev/lila-ws/internal/chess"
	"github.com/fitztrev/lila-ws/internal/config"
	"github.com/fitztrev/lila-ws/internal/db"
	"github.com/fitztrev/lila-ws/internal/evalcache"
	"github.com/fitztrev/lila-ws/internal/fishnet"
	"github.com/fitztrev/lila-ws/internal/ingest"
	"github.com/fitztrev/lila-ws/internal/logx"
	"github.com/fitztrev/lila-ws/internal/mod"
	"github.com/fitztrev/lila-ws/internal/round"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logx.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logx.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := db.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("mongo close")
		}
	}()

	rounds := round.NewCache(store, cfg.Cache.RoundTTL, logger)
	defer rounds.Close()

	trolls := mod.NewFlagCache(store, "troll", cfg.Cache.FlagTTL, logger)
	defer trolls.Close()
	if n, err := trolls.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("warm troll cache")
	} else {
		logger.Info().Int("users", n).Msg("troll cache warmed")
	}

	engine := evalcache.New(evalcache.Config{
		MinPvPlies: cfg.Eval.MinPvPlies,
		MaxPvPlies: cfg.Eval.MaxPvPlies,
		MinKnodes:  int32(cfg.Eval.MinKnodes),
		MinDepth:   int32(cfg.Eval.MinDepth),
		MaxEvals:   cfg.Eval.MaxEvals,
	})
	merger := ingest.NewMerger(engine, store, logger)

	g, ctx := errgroup.WithContext(ctx)

	analyzer := fishnet.NewWorker(fishnet.Config{
		EnginePath: cfg.Fishnet.EnginePath,
		Depth:      cfg.Fishnet.Depth,
		MultiPv:    cfg.Fishnet.MultiPv,
		HashMB:     cfg.Fishnet.HashMB,
		Threads:    cfg.Fishnet.Threads,
		QueueSize:  cfg.Fishnet.QueueSize,
		By:         cfg.Fishnet.By,
		Logger:     logger,
	}, merger)
	if analyzer != nil {
		merger.SetDeepener(func(pos chess.Pos) { analyzer.Offer(pos) })
		g.Go(func() error { return analyzer.Run(ctx) })
		logger.Info().Str("engine", cfg.Fishnet.EnginePath).Msg("started analysis worker")
	}

	spool, err := ingest.NewWorker(ingest.Config{
		WatchDir:     cfg.Spool.WatchDir,
		ProcessedDir: cfg.Spool.ProcessedDir,
		PollInterval: cfg.Spool.PollInterval,
		Logger:       logger.With().Str("component", "spool").Logger(),
	}, merger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create spool watcher")
	}
	if spool != nil {
		g.Go(func() error { return spool.Run(ctx) })
	}

	logger.Info().
		Str("database", cfg.Mongo.Database).
		Dur("round_ttl", cfg.Cache.RoundTTL).
		Dur("flag_ttl", cfg.Cache.FlagTTL).
		Msg("lila-ws up")

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("worker stopped")
	}

	rs := rounds.Stats()
	logger.Info().
		Uint64("round_hits", rs.Hits).
		Uint64("round_misses", rs.Misses).
		Msg("shutdown complete")
}
