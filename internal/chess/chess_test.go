package chess

import (
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestNormalizeStripsMoveCounters(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			"start position",
			"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 31 17",
		},
		{
			"after 1.e4",
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 5 40",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, ok := Normalize(Standard, tt.a)
			if !ok {
				t.Fatalf("Normalize(%q) failed", tt.a)
			}
			pb, ok := Normalize(Standard, tt.b)
			if !ok {
				t.Fatalf("Normalize(%q) failed", tt.b)
			}
			if pa.ID != pb.ID {
				t.Errorf("ids differ: %s vs %s", pa.ID, pb.ID)
			}
			if pa.MoveCount != pb.MoveCount {
				t.Errorf("move counts differ: %d vs %d", pa.MoveCount, pb.MoveCount)
			}
		})
	}
}

func TestNormalizeDistinctPositions(t *testing.T) {
	a, ok := Normalize(Standard, startFEN)
	if !ok {
		t.Fatal("start position failed to normalize")
	}
	// Same placement, black to move
	b, ok := Normalize(Standard, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")
	if !ok {
		t.Fatal("black-to-move position failed to normalize")
	}
	if a.ID == b.ID {
		t.Error("side to move must be part of identity")
	}
}

func TestNormalizeVariantTag(t *testing.T) {
	std, ok := Normalize(Standard, startFEN)
	if !ok {
		t.Fatal("standard normalize failed")
	}
	koth, ok := Normalize(KingOfTheHill, startFEN)
	if !ok {
		t.Fatal("kingOfTheHill normalize failed")
	}
	if std.ID == koth.ID {
		t.Error("variant must be part of identity")
	}
	if std.ID.Variant() != Standard || koth.ID.Variant() != KingOfTheHill {
		t.Error("variant tag not preserved in id")
	}
}

func TestNormalizeRejects(t *testing.T) {
	bad := []string{
		"",
		"not a fen",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1", // missing rank
		"8/8/8/8/8/8/8/8 w - - 0 1",                       // no kings
	}
	for _, fen := range bad {
		if _, ok := Normalize(Standard, fen); ok {
			t.Errorf("Normalize(%q) should fail", fen)
		}
	}
}

func TestIDRoundTrip(t *testing.T) {
	pos, ok := Normalize(Standard, startFEN)
	if !ok {
		t.Fatal("normalize failed")
	}
	parsed, err := ParseID(pos.ID.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if parsed != pos.ID {
		t.Errorf("round trip mismatch: %s vs %s", parsed, pos.ID)
	}
	if _, err := ParseID("@@@not-base64@@@"); err == nil {
		t.Error("ParseID should reject invalid input")
	}
	if _, err := ParseID("YWJj"); err == nil {
		t.Error("ParseID should reject wrong-length input")
	}
}

func TestVariantKeys(t *testing.T) {
	for v, key := range variantKeys {
		got, ok := VariantFromKey(key)
		if !ok || got != v {
			t.Errorf("VariantFromKey(%q) = (%v, %v), want (%v, true)", key, got, ok, v)
		}
	}
	if _, ok := VariantFromKey("fischerandom"); ok {
		t.Error("unknown variant key should be rejected")
	}
}
