package tracker_test

import (
	"net"
	"strings"
	"testing"

	"github.com/markhalden/bitlet/tracker"
)

func TestPercentEncode(t *testing.T) {
	// S4-style: raw bytes that need escaping interleave with unreserved ones.
	infoHash := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf1, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x12, 0x34, 0x56, 0x78, 0x9a}
	got := tracker.PercentEncode(infoHash)
	want := "%124Vx%9A%BC%DE%F1%23Eg%89%AB%CD%EF%124Vx%9A"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildURL(t *testing.T) {
	// S4
	var infoHash [20]byte
	copy(infoHash[:], []byte{0x12, 0x34})
	var peerID [20]byte
	copy(peerID[:], []byte("PC0001-1234567890123"))

	got := tracker.BuildURL("http://tracker.example/announce", infoHash, peerID, 6881, 42)
	want := "http://tracker.example/announce?info_hash=%12" + "4" + strings.Repeat("%00", 18) +
		"&peer_id=PC0001-1234567890123&port=6881&uploaded=0&downloaded=0&left=42&compact=1"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestParseCompactPeers(t *testing.T) {
	// S5
	b := []byte{0x0a, 0x00, 0x00, 0x01, 0x1a, 0xe1, 0x0a, 0x00, 0x00, 0x02, 0x1a, 0xe2}
	peers, err := tracker.ParseCompactPeers(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}
	if peers[0].String() != "10.0.0.1:6881" {
		t.Errorf("peers[0] = %s, want 10.0.0.1:6881", peers[0])
	}
	if peers[1].String() != "10.0.0.2:6882" {
		t.Errorf("peers[1] = %s, want 10.0.0.2:6882", peers[1])
	}
	if !peers[0].IP.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Errorf("peers[0].IP = %v", peers[0].IP)
	}
}

func TestParseCompactPeersBadLength(t *testing.T) {
	_, err := tracker.ParseCompactPeers([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for non-multiple-of-6 length")
	}
}

func TestParseResponseFailureReason(t *testing.T) {
	// "d14:failure reason15:unknown torrente"
	body := []byte("d14:failure reason15:unknown torrente")
	_, err := tracker.ParseResponse(body)
	if err == nil {
		t.Fatal("expected a failure")
	}
}

func TestParseResponseCompactPeers(t *testing.T) {
	peers := string([]byte{0x0a, 0x00, 0x00, 0x01, 0x1a, 0xe1})
	body := []byte("d5:peers6:" + peers + "e")
	got, err := tracker.ParseResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].String() != "10.0.0.1:6881" {
		t.Errorf("got %+v", got)
	}
}
