// Package evalcache merges chess engine evaluation submissions into a
// ranked, deduplicated, size-bounded canonical entry per position.
package evalcache

import (
	"sort"
	"time"

	"github.com/fitztrev/lila-ws/internal/chess"
)

// Score is a centipawn or mate-distance evaluation; exactly one of the
// two is set. Use Cp or MateIn to construct one.
type Score struct {
	Cp   *int32 `bson:"cp,omitempty" json:"cp,omitempty"`
	Mate *int32 `bson:"mate,omitempty" json:"mate,omitempty"`
}

// Cp returns a centipawn score.
func Cp(n int32) Score {
	return Score{Cp: &n}
}

// MateIn returns a mate-distance score.
func MateIn(n int32) Score {
	return Score{Mate: &n}
}

// IsMate reports whether the score is a mate distance.
func (s Score) IsMate() bool { return s.Mate != nil }

// MateDistance returns the mate distance and whether one is set.
func (s Score) MateDistance() (int32, bool) {
	if s.Mate == nil {
		return 0, false
	}
	return *s.Mate, true
}

// Valid reports whether exactly one of cp and mate is set.
func (s Score) Valid() bool {
	return (s.Cp == nil) != (s.Mate == nil)
}

// Equal compares two scores by value.
func (s Score) Equal(o Score) bool {
	if (s.Cp == nil) != (o.Cp == nil) || (s.Mate == nil) != (o.Mate == nil) {
		return false
	}
	if s.Cp != nil && *s.Cp != *o.Cp {
		return false
	}
	if s.Mate != nil && *s.Mate != *o.Mate {
		return false
	}
	return true
}

// Pv is one candidate line: a score and the move sequence behind it.
type Pv struct {
	Score Score  `bson:"score" json:"score"`
	Moves []Move `bson:"moves" json:"moves"`
}

// Equal compares score and full move sequence.
func (p Pv) Equal(o Pv) bool {
	if !p.Score.Equal(o.Score) || len(p.Moves) != len(o.Moves) {
		return false
	}
	for i := range p.Moves {
		if p.Moves[i] != o.Moves[i] {
			return false
		}
	}
	return true
}

// Trust is the provenance tag on a submitted evaluation.
type Trust int8

// Eval is one contributor's evaluation of a position.
type Eval struct {
	Pvs    []Pv   `bson:"pvs" json:"pvs"`
	Knodes int32  `bson:"knodes" json:"knodes"`
	Depth  int32  `bson:"depth" json:"depth"`
	By     string `bson:"by" json:"by"`
	Trust  Trust  `bson:"trust" json:"trust"`
}

// HasMate reports whether any pv found a forced mate.
func (e Eval) HasMate() bool {
	for _, pv := range e.Pvs {
		if pv.Score.IsMate() {
			return true
		}
	}
	return false
}

// TakePvs returns a copy of the eval reduced to exactly its first n pvs.
func (e Eval) TakePvs(n int) Eval {
	if n > len(e.Pvs) {
		n = len(e.Pvs)
	}
	out := e
	out.Pvs = make([]Pv, n)
	copy(out.Pvs, e.Pvs[:n])
	return out
}

// Equal compares every field, pvs included.
func (e Eval) Equal(o Eval) bool {
	if e.Knodes != o.Knodes || e.Depth != o.Depth || e.By != o.By || e.Trust != o.Trust {
		return false
	}
	if len(e.Pvs) != len(o.Pvs) {
		return false
	}
	for i := range e.Pvs {
		if !e.Pvs[i].Equal(o.Pvs[i]) {
			return false
		}
	}
	return true
}

// moreInformative is the ranking order: more pvs first, then more search
// effort, then greater depth. Ties keep input order (sorts are stable),
// so a fresh submission outranks an equally informative stored one.
func moreInformative(a, b Eval) bool {
	if len(a.Pvs) != len(b.Pvs) {
		return len(a.Pvs) > len(b.Pvs)
	}
	if a.Knodes != b.Knodes {
		return a.Knodes > b.Knodes
	}
	return a.Depth > b.Depth
}

// Entry is the canonical per-position record: the ranked set of known
// evaluations. Evals is always sorted most informative first and no pv
// count exceeds MoveCount.
type Entry struct {
	ID        chess.ID  `bson:"_id" json:"id"`
	MoveCount int       `bson:"nbMoves" json:"nbMoves"`
	Evals     []Eval    `bson:"evals" json:"evals"`
	UsedAt    time.Time `bson:"usedAt" json:"usedAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// BestMultiPv returns the first eval, in ranking order, carrying at least
// min(n, MoveCount) lines, truncated to exactly that many. When no stored
// eval has enough lines it degrades to the eval with the most.
func (e Entry) BestMultiPv(n int) (Eval, bool) {
	if len(e.Evals) == 0 {
		return Eval{}, false
	}
	want := n
	if want > e.MoveCount {
		want = e.MoveCount
	}
	if want < 1 {
		want = 1
	}
	for _, ev := range e.Evals {
		if len(ev.Pvs) >= want {
			return ev.TakePvs(want), true
		}
	}
	widest := e.Evals[0]
	for _, ev := range e.Evals[1:] {
		if len(ev.Pvs) > len(widest.Pvs) {
			widest = ev
		}
	}
	return widest.TakePvs(len(widest.Pvs)), true
}

// BestSinglePv returns the top-ranked eval reduced to one pv.
func (e Entry) BestSinglePv() (Eval, bool) {
	return e.BestMultiPv(1)
}

// SimilarTo reports structural equivalence: same id and exactly the same
// evals sequence. Callers use this to skip redundant store writes.
func (e Entry) SimilarTo(o Entry) bool {
	if e.ID != o.ID || len(e.Evals) != len(o.Evals) {
		return false
	}
	for i := range e.Evals {
		if !e.Evals[i].Equal(o.Evals[i]) {
			return false
		}
	}
	return true
}

func sortEvals(evals []Eval) {
	sort.SliceStable(evals, func(i, j int) bool {
		return moreInformative(evals[i], evals[j])
	})
}
