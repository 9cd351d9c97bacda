package evalcache

import (
	"testing"
)

func TestEncodeMove(t *testing.T) {
	// Test encoding and verify it round-trips correctly
	tests := []struct {
		name  string
		from  int
		to    int
		promo byte
	}{
		{"e2e4", 12, 28, PromoNone},
		{"e7e8q", 52, 60, PromoQueen},
		{"a1h8", 0, 63, PromoNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeMove(tt.from, tt.to, tt.promo)
			from, to, promo := got.FromSquare(), got.ToSquare(), got.Promotion()
			if from != tt.from || to != tt.to || promo != tt.promo {
				t.Errorf("EncodeMove(%d, %d, %d) = %x, but decode gives (%d, %d, %d)",
					tt.from, tt.to, tt.promo, got, from, to, promo)
			}
		})
	}
}

func TestMoveUCIRoundTrip(t *testing.T) {
	tests := []string{"e2e4", "e7e8q", "a7a8r", "h2h1b", "b7b8n", "a1h8", "g1f3"}
	for _, uci := range tests {
		t.Run(uci, func(t *testing.T) {
			m, err := MoveFromUCI(uci)
			if err != nil {
				t.Fatalf("MoveFromUCI(%q): %v", uci, err)
			}
			if got := m.UCI(); got != uci {
				t.Errorf("round trip %q -> %q", uci, got)
			}
		})
	}
}

func TestMoveFromUCIRejects(t *testing.T) {
	bad := []string{"", "e2", "e2e", "i2e4", "e9e4", "e2e4x", "e2e4q1"}
	for _, uci := range bad {
		if _, err := MoveFromUCI(uci); err == nil {
			t.Errorf("MoveFromUCI(%q) should fail", uci)
		}
	}
}

func TestMoveJSON(t *testing.T) {
	m, err := MoveFromUCI("e7e8q")
	if err != nil {
		t.Fatal(err)
	}
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"e7e8q"` {
		t.Errorf("MarshalJSON = %s", data)
	}
	var back Move
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if back != m {
		t.Errorf("JSON round trip: %x vs %x", back, m)
	}
}
