package peer

import (
	"encoding/hex"
	"testing"
)

func TestHandshakeBytes(t *testing.T) {
	var infoHash [20]byte
	var peerID [20]byte
	copy(peerID[:], []byte("12345678901234567890"))

	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	got := hex.EncodeToString(h.Bytes())
	want := "13426974546f7272656e742070726f746f636f6c" + // pstrlen + "BitTorrent protocol"
		"0000000000000000" + // 8 reserved bytes
		"0000000000000000000000000000000000000000" + // 20-byte zero info hash
		"3132333435363738393031323334353637383930" // peer id
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestParseHandshakeRoundTrip(t *testing.T) {
	var infoHash [20]byte
	copy(infoHash[:], []byte("abcdefghij0123456789"))
	var peerID [20]byte
	copy(peerID[:], []byte("-GT0001-abcdefghijkl"))

	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	got, err := ParseHandshake(h.Bytes(), infoHash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != peerID {
		t.Errorf("got %x, want %x", got, peerID)
	}
}

func TestParseHandshakeWrongLength(t *testing.T) {
	if _, err := ParseHandshake([]byte{1, 2, 3}, [20]byte{}); err == nil {
		t.Fatal("expected error for short handshake")
	}
}

func TestParseHandshakeInfoHashMismatch(t *testing.T) {
	var infoHash [20]byte
	copy(infoHash[:], []byte("abcdefghij0123456789"))
	h := Handshake{InfoHash: infoHash}

	var other [20]byte
	copy(other[:], []byte("zzzzzzzzzzzzzzzzzzzz"))
	if _, err := ParseHandshake(h.Bytes(), other); err == nil {
		t.Fatal("expected info hash mismatch error")
	}
}

func TestParseHandshakeBadProtocolString(t *testing.T) {
	buf := Handshake{}.Bytes()
	buf[5] = 'X' // corrupt "BitTorrent protocol"
	if _, err := ParseHandshake(buf, [20]byte{}); err == nil {
		t.Fatal("expected protocol mismatch error")
	}
}
