package fishnet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/fitztrev/lila-ws/internal/chess"
	"github.com/fitztrev/lila-ws/internal/evalcache"
	"github.com/fitztrev/lila-ws/internal/ingest"
)

// Config configures the local analysis worker.
type Config struct {
	EnginePath string // path to a UCI engine binary; empty disables the worker
	Depth      int    // search depth per position
	MultiPv    int    // principal variations to request
	HashMB     int
	Threads    int
	QueueSize  int
	By         string // contributor name attached to submissions
	Logger     zerolog.Logger
}

// Worker pulls queued positions, analyzes them with a UCI engine, and
// submits the results like any other contributor.
type Worker struct {
	cfg    Config
	queue  *Queue
	merger *ingest.Merger
	log    zerolog.Logger

	mu   sync.Mutex
	done map[chess.ID]struct{} // positions this worker already analyzed
}

// NewWorker creates an analysis worker. A worker with no engine path is
// disabled and returned as nil.
func NewWorker(cfg Config, merger *ingest.Merger) *Worker {
	if cfg.EnginePath == "" {
		return nil // Disabled
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 24
	}
	if cfg.MultiPv <= 0 {
		cfg.MultiPv = 3
	}
	if cfg.HashMB <= 0 {
		cfg.HashMB = 256
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.By == "" {
		cfg.By = "local"
	}
	return &Worker{
		cfg:    cfg,
		queue:  NewQueue(cfg.QueueSize),
		merger: merger,
		log:    cfg.Logger.With().Str("component", "fishnet").Logger(),
		done:   make(map[chess.ID]struct{}),
	}
}

// Offer queues a position for analysis. Non-standard variants and
// positions this worker already analyzed are skipped.
func (w *Worker) Offer(pos chess.Pos) bool {
	if pos.ID.Variant() != chess.Standard {
		return false
	}
	w.mu.Lock()
	_, analyzed := w.done[pos.ID]
	w.mu.Unlock()
	if analyzed {
		return false
	}
	return w.queue.Enqueue(pos)
}

// Run starts the engine and analyzes queued positions until the context
// is canceled.
func (w *Worker) Run(ctx context.Context) error {
	engine, err := uci.NewEngine(w.cfg.EnginePath)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Close()

	opts := uci.Options{
		Hash:    w.cfg.HashMB,
		Threads: w.cfg.Threads,
		MultiPV: w.cfg.MultiPv,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		return fmt.Errorf("set engine options: %w", err)
	}

	w.log.Info().
		Str("engine", w.cfg.EnginePath).
		Int("depth", w.cfg.Depth).
		Int("multi_pv", w.cfg.MultiPv).
		Msg("analysis worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pos, ok := w.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		if err := w.analyze(ctx, engine, pos); err != nil {
			w.log.Warn().Err(err).Str("fen", pos.FEN).Msg("analysis failed")
		}
	}
}

func (w *Worker) analyze(ctx context.Context, engine *uci.Engine, pos chess.Pos) error {
	w.markDone(pos.ID)

	if err := engine.SetFEN(pos.FEN); err != nil {
		return fmt.Errorf("set FEN: %w", err)
	}
	results, err := engine.GoDepth(w.cfg.Depth, uci.HighestDepthOnly)
	if err != nil {
		return fmt.Errorf("engine search: %w", err)
	}
	if len(results.Results) == 0 {
		return fmt.Errorf("no results from engine")
	}

	ev, err := evalFromResults(results.Results)
	if err != nil {
		return err
	}

	res, err := w.merger.Submit(ctx, ingest.Submission{
		Fen:  pos.FEN,
		By:   w.cfg.By,
		Eval: ev,
	})
	if err != nil {
		return err
	}
	w.log.Debug().
		Str("fen", pos.FEN).
		Int32("depth", ev.Depth).
		Int("pvs", len(ev.Pvs)).
		Bool("saved", res == ingest.Saved).
		Msg("analyzed")
	return nil
}

func (w *Worker) markDone(id chess.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.done) >= 1<<16 {
		w.done = make(map[chess.ID]struct{})
	}
	w.done[id] = struct{}{}
}

// evalFromResults folds a MultiPV search into one submission eval: the
// deepest result per pv index, ordered by pv index.
func evalFromResults(results []uci.ScoreResult) (evalcache.Eval, error) {
	best := make(map[int]uci.ScoreResult)
	for _, r := range results {
		pv := r.MultiPV
		if pv <= 0 {
			pv = 1
		}
		if cur, ok := best[pv]; !ok || r.Depth > cur.Depth {
			best[pv] = r
		}
	}

	indexes := make([]int, 0, len(best))
	for pv := range best {
		indexes = append(indexes, pv)
	}
	sort.Ints(indexes)

	var ev evalcache.Eval
	for _, pv := range indexes {
		r := best[pv]
		moves, err := evalcache.ParseLine(r.BestMoves)
		if err != nil {
			return evalcache.Eval{}, fmt.Errorf("pv %d: %w", pv, err)
		}
		var score evalcache.Score
		if r.Mate {
			score = evalcache.MateIn(int32(r.Score))
		} else {
			score = evalcache.Cp(int32(r.Score))
		}
		ev.Pvs = append(ev.Pvs, evalcache.Pv{Score: score, Moves: moves})

		if int32(r.Depth) > ev.Depth {
			ev.Depth = int32(r.Depth)
		}
		if kn := int32(r.Nodes / 1000); kn > ev.Knodes {
			ev.Knodes = kn
		}
	}
	return ev, nil
}
