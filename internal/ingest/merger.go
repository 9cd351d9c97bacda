// Package ingest funnels contributor evaluation submissions through
// validation and merge into the persistent store.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fitztrev/lila-ws/internal/chess"
	"github.com/fitztrev/lila-ws/internal/db"
	"github.com/fitztrev/lila-ws/internal/evalcache"
)

// Submission is one contributor evaluation as it arrives off the wire or
// out of a spool file: one JSON object per line.
type Submission struct {
	Variant string         `json:"variant"`
	Fen     string         `json:"fen"`
	By      string         `json:"by"`
	Eval    evalcache.Eval `json:"eval"`
}

// Result classifies what a submission did. The zero value carries no
// classification; Submit returns it alongside a non-nil error, so a
// store failure never reads as a validation rejection.
type Result uint8

const (
	// Rejected: the submission failed validation and left no trace.
	Rejected Result = iota + 1
	// Unchanged: merged, but the ranked list did not improve; no write.
	Unchanged
	// Saved: the canonical entry changed and was written back.
	Saved
)

// Merger applies submissions to the store. It serializes merges, which
// provides the at-most-one-in-flight-merge-per-position contract the
// eval engine assumes.
type Merger struct {
	engine *evalcache.Engine
	store  db.EvalStore
	log    zerolog.Logger

	mu     sync.Mutex
	deepen func(chess.Pos)
}

// NewMerger creates a merger over the given engine and store.
func NewMerger(engine *evalcache.Engine, store db.EvalStore, log zerolog.Logger) *Merger {
	return &Merger{
		engine: engine,
		store:  store,
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

// SetDeepener registers a hook offered every position whose entry was
// saved, so a local contributor can deepen it.
func (m *Merger) SetDeepener(fn func(chess.Pos)) {
	m.deepen = fn
}

// Submit validates and merges one submission. Validation failures are
// silent (Rejected); store trouble is an error, and the result is then
// the zero value.
func (m *Merger) Submit(ctx context.Context, sub Submission) (Result, error) {
	variant := chess.Standard
	if sub.Variant != "" {
		v, ok := chess.VariantFromKey(sub.Variant)
		if !ok {
			return Rejected, nil
		}
		variant = v
	}
	in, ok := m.engine.MakeInput(variant, sub.Fen, sub.Eval, sub.By)
	if !ok {
		return Rejected, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found, err := m.store.GetEval(ctx, in.Pos.ID)
	if err != nil {
		return 0, err
	}
	var changed bool
	if !found {
		entry = m.engine.NewEntry(in)
		changed = true
	} else {
		entry, changed = m.engine.Add(entry, in)
	}
	if !changed {
		return Unchanged, nil
	}
	if err := m.store.UpsertEval(ctx, entry); err != nil {
		return 0, err
	}
	if m.deepen != nil {
		m.deepen(in.Pos)
	}
	return Saved, nil
}

// Stats counts what a batch of submissions did.
type Stats struct {
	Saved     int
	Unchanged int
	Rejected  int
	Errors    int
}

// ProcessReader consumes newline-delimited JSON submissions from r.
// Malformed lines count as rejected and never stop the batch; only a
// read error or context cancellation does.
func (m *Merger) ProcessReader(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sub Submission
		if err := json.Unmarshal(line, &sub); err != nil {
			stats.Rejected++
			m.log.Debug().Err(err).Msg("malformed submission line")
			continue
		}
		res, err := m.Submit(ctx, sub)
		if err != nil {
			stats.Errors++
			m.log.Warn().Err(err).Msg("submission merge failed")
			continue
		}
		switch res {
		case Saved:
			stats.Saved++
		case Unchanged:
			stats.Unchanged++
		default:
			stats.Rejected++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read submissions: %w", err)
	}
	return stats, nil
}
