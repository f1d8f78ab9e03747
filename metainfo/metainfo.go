// Package metainfo parses a single-file torrent ("metainfo") blob into a
// Metainfo record and computes the 20-byte info-hash that identifies the
// swarm, per the byte-range-capture strategy recommended for the bencode
// codec: the info dict's hash is taken over its original decoded byte
// range, never a re-encode, so it can never drift from what any other
// client would compute.
package metainfo

import (
	"crypto/sha1"
	"fmt"

	"github.com/markhalden/bitlet/bencode"
	"github.com/markhalden/bitlet/errs"
)

const hashLen = 20

// Info is the single-file "info" sub-dictionary.
type Info struct {
	Name        string
	PieceLength int64
	Length      int64
	Pieces      []byte // concatenation of 20-byte SHA-1 digests
}

// Metainfo is the parsed torrent plus its info-hash.
type Metainfo struct {
	Announce string
	Info     Info
	InfoHash [20]byte
}

// NumPieces returns P, the number of pieces the payload is split into.
func (i *Info) NumPieces() int {
	return len(i.Pieces) / hashLen
}

// PieceHash returns the recorded SHA-1 digest for piece index.
func (i *Info) PieceHash(index int) [20]byte {
	var h [20]byte
	copy(h[:], i.Pieces[index*hashLen:(index+1)*hashLen])
	return h
}

// PieceLen returns piece_length_i: piece_length for every piece but the
// last, whose length is whatever remains of Length. This is the formula
// Open Questions (a)/(b) call out as the one to use instead of
// length % piece_length, which is wrong whenever Length is an exact
// multiple of PieceLength.
func (i *Info) PieceLen(index int) int64 {
	n := i.NumPieces()
	if index < n-1 {
		return i.PieceLength
	}
	return i.Length - int64(n-1)*i.PieceLength
}

// Parse decodes a torrent blob into a Metainfo record and its info-hash.
func Parse(raw []byte) (*Metainfo, error) {
	v, err := bencode.Decode(raw)
	if err != nil {
		return nil, err
	}
	if v.Kind != bencode.Dict {
		return nil, invalid("top-level value is not a dict")
	}

	announce, ok := v.GetString("announce")
	if !ok {
		return nil, invalid("missing or malformed \"announce\"")
	}

	infoVal, ok := v.Get("info")
	if !ok || infoVal.Kind != bencode.Dict {
		return nil, invalid("missing or malformed \"info\" dict")
	}

	name, ok := infoVal.GetString("name")
	if !ok {
		return nil, invalid("missing or malformed \"info.name\"")
	}
	pieceLength, ok := infoVal.GetInt("piece length")
	if !ok {
		return nil, invalid("missing or malformed \"info.piece length\"")
	}
	if pieceLength <= 0 {
		return nil, invalid("info.piece length must be positive, got %d", pieceLength)
	}
	length, ok := infoVal.GetInt("length")
	if !ok {
		return nil, invalid("missing or malformed \"info.length\"")
	}
	if length <= 0 {
		return nil, invalid("info.length must be positive, got %d", length)
	}
	pieces, ok := infoVal.GetString("pieces")
	if !ok {
		return nil, invalid("missing or malformed \"info.pieces\"")
	}
	if len(pieces)%hashLen != 0 {
		return nil, invalid("info.pieces length %d is not a multiple of %d", len(pieces), hashLen)
	}

	info := Info{
		Name:        string(name),
		PieceLength: pieceLength,
		Length:      length,
		Pieces:      pieces,
	}

	numPieces := int64(info.NumPieces())
	if numPieces == 0 || (numPieces-1)*pieceLength >= length || length > numPieces*pieceLength {
		return nil, invalid("piece accounting invariant violated: P=%d piece_length=%d length=%d", numPieces, pieceLength, length)
	}

	mi := &Metainfo{
		Announce: string(announce),
		Info:     info,
		InfoHash: sha1.Sum(infoVal.Raw),
	}
	return mi, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrInvalidMetainfo}, args...)...)
}
