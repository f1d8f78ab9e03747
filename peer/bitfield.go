package peer

import (
	bitmap "github.com/boljen/go-bitmap"
)

// BitField tracks which pieces a peer claims to have, per the bitfield
// message payload in spec §4.4: bit k of byte floor(k/8), MSB-first. The
// underlying storage comes from go-bitmap's Bitmap ([]byte); bit addressing
// is done explicitly here rather than through go-bitmap's own Get/Set,
// since BitTorrent's MSB-first convention isn't the library's default and
// this is cheaper to get right by hand than to fight the library over.
type BitField struct {
	bits bitmap.Bitmap
}

// NewBitField allocates a bitfield large enough for numPieces bits.
func NewBitField(numPieces int) *BitField {
	return &BitField{bits: bitmap.NewSlice(numPieces)}
}

// BitFieldFromPayload wraps a received bitfield message payload as-is.
func BitFieldFromPayload(payload []byte) *BitField {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return &BitField{bits: bitmap.Bitmap(cp)}
}

// HasPiece reports whether bit i is set.
func (b *BitField) HasPiece(i uint32) bool {
	byteIdx := int(i / 8)
	if byteIdx >= len(b.bits) {
		return false
	}
	bitIdx := 7 - (i % 8)
	return b.bits[byteIdx]&(1<<bitIdx) != 0
}

// SetPiece sets bit i, growing the underlying storage if needed.
func (b *BitField) SetPiece(i uint32) {
	byteIdx := int(i / 8)
	for byteIdx >= len(b.bits) {
		b.bits = append(b.bits, 0)
	}
	bitIdx := 7 - (i % 8)
	b.bits[byteIdx] |= 1 << bitIdx
}

// Bytes returns the raw bitfield payload, suitable for re-sending.
func (b *BitField) Bytes() []byte {
	return []byte(b.bits)
}
