package evalcache

import (
	"time"

	"github.com/fitztrev/lila-ws/internal/chess"
)

// Config bounds what the engine accepts and stores.
type Config struct {
	MinPvPlies int // shortest acceptable pv, unless it mates
	MaxPvPlies int // stored pvs are truncated to this many moves
	MinKnodes  int32
	MinDepth   int32
	MaxEvals   int // ranked evals kept per position
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinPvPlies: 6,
		MaxPvPlies: 10,
		MinKnodes:  3000,
		MinDepth:   20,
		MaxEvals:   5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinPvPlies == 0 {
		c.MinPvPlies = d.MinPvPlies
	}
	if c.MaxPvPlies == 0 {
		c.MaxPvPlies = d.MaxPvPlies
	}
	if c.MinKnodes == 0 {
		c.MinKnodes = d.MinKnodes
	}
	if c.MinDepth == 0 {
		c.MinDepth = d.MinDepth
	}
	if c.MaxEvals == 0 {
		c.MaxEvals = d.MaxEvals
	}
	return c
}

// Engine validates and merges evaluation submissions. It performs no I/O
// and holds no state beyond its configuration.
type Engine struct {
	cfg Config
}

// New creates an engine; zero config fields fall back to defaults.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Input is a validated, normalized submission ready to merge.
type Input struct {
	Pos  chess.Pos
	Eval Eval
}

// MakeInput validates a submission. Rejections are silent: a submission
// that fails any check produces no Input and no partial state. Accepted
// pvs are truncated to the configured maximum length.
func (en *Engine) MakeInput(variant chess.Variant, fen string, ev Eval, by string) (Input, bool) {
	pos, ok := chess.Normalize(variant, fen)
	if !ok {
		return Input{}, false
	}
	if len(ev.Pvs) == 0 || len(ev.Pvs) > pos.MoveCount {
		return Input{}, false
	}
	for _, pv := range ev.Pvs {
		if len(pv.Moves) == 0 || !pv.Score.Valid() {
			return Input{}, false
		}
		if d, isMate := pv.Score.MateDistance(); isMate && d == 0 {
			// degenerate engine artifact
			return Input{}, false
		}
		if len(pv.Moves) < en.cfg.MinPvPlies && !pv.Score.IsMate() {
			return Input{}, false
		}
	}
	if !ev.HasMate() && ev.Knodes < en.cfg.MinKnodes && ev.Depth < en.cfg.MinDepth {
		return Input{}, false
	}

	out := ev
	out.By = by
	out.Pvs = make([]Pv, len(ev.Pvs))
	for i, pv := range ev.Pvs {
		if len(pv.Moves) > en.cfg.MaxPvPlies {
			pv.Moves = pv.Moves[:en.cfg.MaxPvPlies]
		}
		out.Pvs[i] = pv
	}
	return Input{Pos: pos, Eval: out}, true
}

// NewEntry creates the canonical record from a position's first accepted
// submission.
func (en *Engine) NewEntry(in Input) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:        in.Pos.ID,
		MoveCount: in.Pos.MoveCount,
		Evals:     []Eval{in.Eval},
		UsedAt:    now,
		UpdatedAt: now,
	}
}

// Add merges a validated submission into entry: the new eval is ranked
// against the stored ones, exact duplicates collapse, and the list is
// trimmed to the configured cap. Returns the updated entry and whether
// the ranked list changed; an unchanged list means the caller can skip
// the store write.
//
// Add is a pure in-memory transformation. Concurrent merges targeting
// the same position must be serialized by the caller.
func (en *Engine) Add(entry Entry, in Input) (Entry, bool) {
	for _, ev := range entry.Evals {
		if ev.Equal(in.Eval) {
			return entry, false
		}
	}

	evals := make([]Eval, 0, len(entry.Evals)+1)
	evals = append(evals, in.Eval)
	evals = append(evals, entry.Evals...)
	sortEvals(evals)

	// Distinct evals can tie on every ranking dimension, so duplicates
	// are not necessarily adjacent after the sort. The list is small
	// enough to dedupe against everything kept so far.
	deduped := make([]Eval, 0, len(evals))
	for _, ev := range evals {
		dup := false
		for _, kept := range deduped {
			if ev.Equal(kept) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, ev)
		}
	}
	if len(deduped) > en.cfg.MaxEvals {
		deduped = deduped[:en.cfg.MaxEvals]
	}

	if evalsEqual(entry.Evals, deduped) {
		return entry, false
	}
	now := time.Now().UTC()
	entry.Evals = deduped
	entry.UsedAt = now
	entry.UpdatedAt = now
	return entry, true
}

func evalsEqual(a, b []Eval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
