package peer

import (
	"bytes"
	"fmt"

	"github.com/markhalden/bitlet/errs"
)

const (
	protocolID   = "BitTorrent protocol"
	reservedLen  = 8
	handshakeLen = 1 + len(protocolID) + reservedLen + 20 + 20
)

var protocolBytes = []byte(protocolID)

// Handshake is the fixed 68-byte message exchanged immediately after
// connecting, per spec §4.4.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Bytes renders the handshake in wire order: pstrlen, pstr, 8 reserved
// zero bytes, info_hash, peer_id.
func (h Handshake) Bytes() []byte {
	buf := make([]byte, handshakeLen)
	buf[0] = byte(len(protocolBytes))
	copy(buf[1:1+len(protocolBytes)], protocolBytes)
	// bytes [1+len(protocolBytes) : 1+len(protocolBytes)+reservedLen] are
	// already zero.
	off := 1 + len(protocolBytes) + reservedLen
	copy(buf[off:off+20], h.InfoHash[:])
	copy(buf[off+20:off+40], h.PeerID[:])
	return buf
}

// ParseHandshake validates a received 68-byte handshake against the
// info-hash we expect and returns the remote peer's 20-byte id.
func ParseHandshake(buf []byte, wantInfoHash [20]byte) (peerID [20]byte, err error) {
	if len(buf) != handshakeLen {
		return peerID, fmt.Errorf("%w: expected %d bytes, got %d", errs.ErrHandshakeFailed, handshakeLen, len(buf))
	}
	pstrLen := int(buf[0])
	if pstrLen != len(protocolBytes) {
		return peerID, fmt.Errorf("%w: unexpected pstrlen %d", errs.ErrHandshakeFailed, pstrLen)
	}
	if !bytes.Equal(buf[1:1+pstrLen], protocolBytes) {
		return peerID, fmt.Errorf("%w: unexpected protocol string %q", errs.ErrHandshakeFailed, buf[1:1+pstrLen])
	}
	off := 1 + pstrLen + reservedLen
	var infoHash [20]byte
	copy(infoHash[:], buf[off:off+20])
	if infoHash != wantInfoHash {
		return peerID, fmt.Errorf("%w: info hash mismatch", errs.ErrHandshakeFailed)
	}
	copy(peerID[:], buf[off+20:off+40])
	return peerID, nil
}
