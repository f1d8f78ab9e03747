package client

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/markhalden/bitlet/bencode"
)

func TestDecodeAtoms(t *testing.T) {
	cases := map[string]string{
		"i-42e":   "-42",
		"5:hello": `"hello"`,
		"le":      "[]",
		"de":      "{}",
	}
	for input, want := range cases {
		got, err := Decode(input)
		if err != nil {
			t.Fatalf("Decode(%q): %v", input, err)
		}
		if got != want {
			t.Errorf("Decode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDecodeMalformedReturnsError(t *testing.T) {
	if _, err := Decode("i-e"); err == nil {
		t.Fatal("expected error for malformed bencode")
	}
}

// writeTestTorrent builds and writes a minimal single-piece torrent file
// whose announce points at the given test tracker URL, returning the path
// and the plaintext payload it describes.
func writeTestTorrent(t *testing.T, announce string) (string, []byte) {
	payload := []byte("hello, bitlet")
	hash := sha1.Sum(payload)

	info := bencode.NewDict()
	info.Dict["name"] = bencode.NewString([]byte("greeting.txt"))
	info.Dict["piece length"] = bencode.NewInt(int64(len(payload)))
	info.Dict["length"] = bencode.NewInt(int64(len(payload)))
	info.Dict["pieces"] = bencode.NewString(hash[:])

	top := bencode.NewDict()
	top.Dict["announce"] = bencode.NewString([]byte(announce))
	top.Dict["info"] = info

	path := filepath.Join(t.TempDir(), "test.torrent")
	if err := os.WriteFile(path, bencode.Encode(top), 0644); err != nil {
		t.Fatalf("writing torrent file: %v", err)
	}
	return path, payload
}

func TestInfoCommand(t *testing.T) {
	path, payload := writeTestTorrent(t, "http://example.invalid/announce")
	out, err := Info(path)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !strings.Contains(out, "Tracker URL: http://example.invalid/announce") {
		t.Errorf("missing tracker URL in output: %s", out)
	}
	if !strings.Contains(out, "Length: "+strconv.Itoa(len(payload))) {
		t.Errorf("missing length in output: %s", out)
	}
	if !strings.Contains(out, "Name: greeting.txt") {
		t.Errorf("missing name in output: %s", out)
	}
}

func TestPeersCommandParsesCompactList(t *testing.T) {
	compact := []byte{10, 0, 0, 1, 0x1a, 0xe1}
	resp := bencode.NewDict()
	resp.Dict["peers"] = bencode.NewString(compact)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bencode.Encode(resp))
	}))
	defer srv.Close()

	path, _ := writeTestTorrent(t, srv.URL)
	out, err := Peers(context.Background(), path)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if out != "10.0.0.1:6881" {
		t.Errorf("got %q, want 10.0.0.1:6881", out)
	}
}

func TestPeersCommandSurfacesTrackerFailure(t *testing.T) {
	resp := bencode.NewDict()
	resp.Dict["failure reason"] = bencode.NewString([]byte("swarm not found"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bencode.Encode(resp))
	}))
	defer srv.Close()

	path, _ := writeTestTorrent(t, srv.URL)
	if _, err := Peers(context.Background(), path); err == nil {
		t.Fatal("expected tracker failure error")
	}
}

func TestHandshakeCommand(t *testing.T) {
	path, _ := writeTestTorrent(t, "http://example.invalid/announce")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var remotePeerID [20]byte
	copy(remotePeerID[:], []byte("-UT0001-abcdefghijkl"))
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 68)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		var infoHash [20]byte
		copy(infoHash[:], buf[28:48])
		conn.Write(handshakeWireBytes(infoHash, remotePeerID))
	}()

	out, err := Handshake(context.Background(), path, ln.Addr().String(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	want := "Peer ID: " + hex.EncodeToString(remotePeerID[:])
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

// handshakeWireBytes renders a handshake message directly, independent of
// the peer package's own Handshake type, so the test exercises the real
// wire format rather than round-tripping through the implementation it is
// checking.
func handshakeWireBytes(infoHash, peerID [20]byte) []byte {
	const pstr = "BitTorrent protocol"
	buf := make([]byte, 0, 68)
	buf = append(buf, byte(len(pstr)))
	buf = append(buf, []byte(pstr)...)
	buf = append(buf, make([]byte, 8)...)
	buf = append(buf, infoHash[:]...)
	buf = append(buf, peerID[:]...)
	return buf
}
