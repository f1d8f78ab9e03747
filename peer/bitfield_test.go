package peer

import "testing"

func TestBitFieldHasAndSetPiece(t *testing.T) {
	// 0b 1110 1111, 0111 1111, 0000 0100
	b := BitFieldFromPayload([]byte{0xef, 0x7f, 0x04})

	present := []uint32{0, 1, 2, 4, 5, 6, 7, 9, 10, 11, 12, 13, 14, 15, 21}
	for _, idx := range present {
		if !b.HasPiece(idx) {
			t.Errorf("expected piece %d present", idx)
		}
	}

	missing := []uint32{3, 8, 16, 17, 18, 19, 20}
	for _, idx := range missing {
		if b.HasPiece(idx) {
			t.Errorf("expected piece %d missing", idx)
		}
	}

	b.SetPiece(3)
	if !b.HasPiece(3) {
		t.Errorf("expected piece 3 present after SetPiece")
	}
	// setting one bit must not disturb its neighbours
	if !b.HasPiece(2) || !b.HasPiece(4) {
		t.Errorf("SetPiece(3) disturbed neighbouring bits")
	}
}

func TestNewBitFieldGrowsOnSet(t *testing.T) {
	b := NewBitField(4)
	b.SetPiece(20) // beyond the initial allocation
	if !b.HasPiece(20) {
		t.Errorf("expected piece 20 present after growing SetPiece")
	}
	if b.HasPiece(19) {
		t.Errorf("expected piece 19 to remain unset")
	}
}
