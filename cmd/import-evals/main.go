package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitztrev/lila-ws/internal/db"
	"github.com/fitztrev/lila-ws/internal/evalcache"
	"github.com/fitztrev/lila-ws/internal/ingest"
	"github.com/fitztrev/lila-ws/internal/logx"
)

func main() {
	var (
		inputPath = flag.String("input", "evals.ndjson", "submission file (.ndjson, .ndjson.zst or .ndjson.gz)")
		mongoURI  = flag.String("mongo", "mongodb://localhost:27017", "MongoDB connection URI")
		database  = flag.String("db", "lichess", "MongoDB database name")
		dryRun    = flag.Bool("dry-run", false, "validate and merge in memory without writing to MongoDB")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logx.NewLogger(*logLevel)

	if !ingest.IsSubmissionFile(*inputPath) {
		fmt.Fprintf(os.Stderr, "unrecognized submission file: %s\n", *inputPath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store db.EvalStore
	if *dryRun {
		store = db.NewMem()
		logger.Info().Msg("dry run: merging into memory only")
	} else {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongo, err := db.Connect(connectCtx, *mongoURI, *database, logger)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("connect mongo")
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongo.Close(closeCtx)
		}()
		store = mongo
	}

	merger := ingest.NewMerger(evalcache.New(evalcache.Config{}), store, logger)

	r, err := ingest.OpenSubmissionFile(*inputPath)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *inputPath).Msg("open submission file")
	}
	defer r.Close()

	start := time.Now()
	stats, err := merger.ProcessReader(ctx, r)
	if err != nil {
		logger.Fatal().Err(err).Msg("import failed")
	}

	logger.Info().
		Int("saved", stats.Saved).
		Int("unchanged", stats.Unchanged).
		Int("rejected", stats.Rejected).
		Int("errors", stats.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("import complete")
}
