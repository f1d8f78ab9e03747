// Package download implements the piece download pipeline of spec §4.5/§4.7:
// splitting a piece into blocks, driving block requests over an already
// Ready peer.Session, assembling the result by offset, and verifying it
// against the recorded digest before it is ever written to disk.
package download

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/markhalden/bitlet/errs"
	"github.com/markhalden/bitlet/metainfo"
	"github.com/markhalden/bitlet/peer"
)

// BlockSize is the unit of request/response on the wire, per spec §4.4.
const BlockSize = 16 * 1024

// blockSource is the subset of *peer.Session the downloader needs: a Ready
// session can request and receive blocks. Accepting the interface rather
// than *peer.Session lets tests drive the pipeline without a real socket.
type blockSource interface {
	RequestBlock(ctx context.Context, index, begin, length uint32) error
	NextPieceBlock(ctx context.Context) (index, begin uint32, block []byte, err error)
}

var _ blockSource = (*peer.Session)(nil)

// Piece downloads and verifies piece index over an already-Ready session,
// returning its raw, hash-verified bytes.
func Piece(ctx context.Context, s blockSource, mi *metainfo.Metainfo, index int) ([]byte, error) {
	pieceLen := mi.Info.PieceLen(index)
	buf := make([]byte, pieceLen)

	for begin := int64(0); begin < pieceLen; begin += BlockSize {
		length := int64(BlockSize)
		if remaining := pieceLen - begin; remaining < length {
			length = remaining
		}
		if err := s.RequestBlock(ctx, uint32(index), uint32(begin), uint32(length)); err != nil {
			return nil, err
		}
	}

	received := int64(0)
	for received < pieceLen {
		gotIndex, gotBegin, block, err := s.NextPieceBlock(ctx)
		if err != nil {
			return nil, err
		}
		if int(gotIndex) != index {
			return nil, fmt.Errorf("%w: got block for piece %d, want %d", errs.ErrUnexpectedPeerMessage, gotIndex, index)
		}
		if int64(gotBegin)+int64(len(block)) > pieceLen {
			return nil, fmt.Errorf("%w: block at offset %d length %d overruns piece length %d",
				errs.ErrUnexpectedPeerMessage, gotBegin, len(block), pieceLen)
		}
		copy(buf[gotBegin:], block)
		received += int64(len(block))
	}

	got := sha1.Sum(buf)
	want := mi.Info.PieceHash(index)
	if got != want {
		return nil, fmt.Errorf("%w: piece %d", errs.ErrPieceHashMismatch, index)
	}
	return buf, nil
}
