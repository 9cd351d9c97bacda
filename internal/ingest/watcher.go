package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the spool watcher.
type Config struct {
	WatchDir     string        // directory to watch for submission files
	ProcessedDir string        // directory to move processed files to
	PollInterval time.Duration // how often to check for new files
	Logger       zerolog.Logger
}

// Worker watches a folder and merges submission files dropped into it.
type Worker struct {
	cfg    Config
	merger *Merger
	log    zerolog.Logger
}

// NewWorker creates a spool watcher. A worker with no watch directory is
// disabled and returned as nil.
func NewWorker(cfg Config, merger *Merger) (*Worker, error) {
	if cfg.WatchDir == "" {
		return nil, nil // Disabled
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.WatchDir, "processed")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ProcessedDir, 0755); err != nil {
		return nil, err
	}

	return &Worker{
		cfg:    cfg,
		merger: merger,
		log:    cfg.Logger,
	}, nil
}

// Run starts the folder watcher.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("watch_dir", w.cfg.WatchDir).
		Str("processed_dir", w.cfg.ProcessedDir).
		Msg("submission watcher started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.processNewFiles(ctx); err != nil {
				w.log.Warn().Err(err).Msg("process files failed")
			}
		}
	}
}

// processNewFiles merges every submission file currently in the watch
// directory, oldest name first. Files are processed sequentially: merges
// for a position must not race.
func (w *Worker) processNewFiles(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsSubmissionFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil
	}
	sort.Strings(files)

	for _, name := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		path := filepath.Join(w.cfg.WatchDir, name)
		if err := w.processFile(ctx, path); err != nil {
			w.log.Error().Err(err).Str("file", name).Msg("submission file failed")
			continue
		}
		dest := filepath.Join(w.cfg.ProcessedDir, name)
		if err := os.Rename(path, dest); err != nil {
			w.log.Warn().Err(err).Str("file", name).Msg("move to processed failed")
		}
	}
	return nil
}

func (w *Worker) processFile(ctx context.Context, path string) error {
	start := time.Now()
	r, err := OpenSubmissionFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	stats, err := w.merger.ProcessReader(ctx, r)
	if err != nil {
		return err
	}
	w.log.Info().
		Str("file", filepath.Base(path)).
		Int("saved", stats.Saved).
		Int("unchanged", stats.Unchanged).
		Int("rejected", stats.Rejected).
		Int("errors", stats.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("submission file merged")
	return nil
}
