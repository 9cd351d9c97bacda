package chess

import (
	"encoding/base64"
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// Variant identifies the game variant a position is evaluated under.
type Variant uint8

const (
	Standard Variant = iota
	Chess960
	KingOfTheHill
	ThreeCheck
	Antichess
	Atomic
	Horde
	RacingKings
	Crazyhouse
)

var variantKeys = map[Variant]string{
	Standard:      "standard",
	Chess960:      "chess960",
	KingOfTheHill: "kingOfTheHill",
	ThreeCheck:    "threeCheck",
	Antichess:     "antichess",
	Atomic:        "atomic",
	Horde:         "horde",
	RacingKings:   "racingKings",
	Crazyhouse:    "crazyhouse",
}

// Key returns the stable string key for the variant.
func (v Variant) Key() string {
	if k, ok := variantKeys[v]; ok {
		return k
	}
	return "standard"
}

// VariantFromKey resolves a variant key. Unknown keys are rejected.
func VariantFromKey(key string) (Variant, bool) {
	for v, k := range variantKeys {
		if k == key {
			return v, true
		}
	}
	return Standard, false
}

// PackedSize is the size of a packed board position.
const PackedSize = 34

// IDSize is the size of a canonical position id: variant byte + packed board.
const IDSize = 1 + PackedSize

// ID is the canonical identity of a position under a variant. It covers
// placement, side to move, castling rights and en-passant target; move
// counters are not part of identity. Structural equality, usable as a map key.
type ID [IDSize]byte

// String returns the url-safe base64 form, used as the document store _id.
func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseID decodes the string form produced by String.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse position id: %w", err)
	}
	if len(b) != IDSize {
		return id, fmt.Errorf("parse position id: got %d bytes, want %d", len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// Variant returns the variant tag embedded in the id.
func (id ID) Variant() Variant {
	return Variant(id[0])
}

func makeID(variant Variant, packed pgn.PackedPosition) ID {
	var id ID
	id[0] = byte(variant)
	copy(id[1:], packed[:])
	return id
}

// Pos is a normalized, playable position.
type Pos struct {
	ID        ID
	MoveCount int    // number of legal moves for the side to move
	FEN       string // normalized FEN, move counters stripped to defaults
}

// Normalize parses fen under the given variant and reduces it to its
// canonical identity. It fails on positions that do not parse, are not
// legal, or have no legal move (nothing to evaluate). Two descriptions
// differing only in halfmove clock or fullmove number normalize to the
// same Pos.
func Normalize(variant Variant, fen string) (Pos, bool) {
	keyStr, err := pgn.PackedPositionFromFEN(fen)
	if err != nil {
		return Pos{}, false
	}
	packed, err := pgn.ParsePackedPosition(keyStr)
	if err != nil {
		return Pos{}, false
	}
	gs := packed.Unpack()
	if gs == nil {
		return Pos{}, false
	}
	moves := pgn.GenerateLegalMoves(gs)
	if len(moves) == 0 {
		return Pos{}, false
	}
	return Pos{
		ID:        makeID(variant, packed),
		MoveCount: len(moves),
		FEN:       gs.ToFEN(),
	}, true
}
