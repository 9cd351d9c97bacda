package evalcache

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Move encoding (uint32):
//   bits 0-5:   from square (0-63)
//   bits 6-11:  to square (0-63)
//   bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
//   bits 15-31: reserved
type Move uint32

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	moveToShift    = 6
	movePromoShift = 12
)

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

// EncodeMove creates a Move from square indices and optional promotion.
// from, to: square indices 0-63 (A1=0, B1=1, ..., H8=63)
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return 0
	}
	return Move(uint32(from) | (uint32(to) << moveToShift) | (uint32(promo) << movePromoShift))
}

// FromSquare returns the source square index (0-63).
func (m Move) FromSquare() int {
	return int(m & moveFromMask)
}

// ToSquare returns the destination square index (0-63).
func (m Move) ToSquare() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// UCI renders the move in UCI notation (e.g. "e2e4", "e7e8q").
func (m Move) UCI() string {
	from := m.FromSquare()
	to := m.ToSquare()
	promo := m.Promotion()

	uci := string([]byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	})
	if promo > 0 && promo <= 4 {
		promoChars := []byte{'q', 'r', 'b', 'n'}
		uci += string(promoChars[promo-1])
	}
	return uci
}

// MoveFromUCI parses a UCI move string.
func MoveFromUCI(uci string) (Move, error) {
	if len(uci) < 4 || len(uci) > 5 {
		return 0, fmt.Errorf("bad UCI move length: %q", uci)
	}
	fromFile := int(uci[0] - 'a')
	fromRank := int(uci[1] - '1')
	toFile := int(uci[2] - 'a')
	toRank := int(uci[3] - '1')
	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 {
		return 0, fmt.Errorf("invalid from square in UCI: %q", uci)
	}
	if toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return 0, fmt.Errorf("invalid to square in UCI: %q", uci)
	}
	var promo byte
	if len(uci) == 5 {
		switch uci[4] {
		case 'q':
			promo = PromoQueen
		case 'r':
			promo = PromoRook
		case 'b':
			promo = PromoBishop
		case 'n':
			promo = PromoKnight
		default:
			return 0, fmt.Errorf("invalid promotion in UCI: %q", uci)
		}
	}
	return EncodeMove(fromRank*8+fromFile, toRank*8+toFile, promo), nil
}

// ParseLine parses a sequence of UCI moves.
func ParseLine(ucis []string) ([]Move, error) {
	moves := make([]Move, 0, len(ucis))
	for _, s := range ucis {
		m, err := MoveFromUCI(s)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// LineUCI renders a move sequence as space-separated UCI.
func LineUCI(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.UCI()
	}
	return out
}

// Moves persist as their UCI string form.

func (m Move) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.UCI())
}

func (m *Move) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	s, ok := rv.StringValueOK()
	if !ok {
		return fmt.Errorf("move: expected string, got %s", t)
	}
	mv, err := MoveFromUCI(s)
	if err != nil {
		return err
	}
	*m = mv
	return nil
}

func (m Move) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.UCI() + `"`), nil
}

func (m *Move) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("move: expected JSON string, got %s", data)
	}
	mv, err := MoveFromUCI(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = mv
	return nil
}
