// Package tracker builds the HTTP tracker request URL and parses the
// bencoded, compact-peer-list response, per BEP 3's announce contract.
package tracker

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/markhalden/bitlet/bencode"
	"github.com/markhalden/bitlet/errs"
)

const peerRecordLen = 6 // 4 bytes IPv4 + 2 bytes port

// Peer is one entry from a tracker's compact peer list.
type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// PercentEncode renders b as a query-string value, percent-encoding every
// byte as %XX except the small set of characters RFC 3986 treats as safe
// unreserved. Used for both info_hash and peer_id, which are raw 20-byte
// binary strings, not text.
func PercentEncode(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c == '.' || c == '-' || c == '_' || c == '~':
		return true
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'z':
		return true
	case 'A' <= c && c <= 'Z':
		return true
	default:
		return false
	}
}

// BuildURL constructs the tracker announce URL for a torrent, following
// spec §4.3: info_hash and peer_id percent-encoded byte by byte, port
// fixed to the (unused) listening port, compact=1.
func BuildURL(announce string, infoHash, peerID [20]byte, port int, left int64) string {
	return fmt.Sprintf(
		"%s?info_hash=%s&peer_id=%s&port=%d&uploaded=0&downloaded=0&left=%d&compact=1",
		announce, PercentEncode(infoHash[:]), PercentEncode(peerID[:]), port, left,
	)
}

// Query performs the tracker GET request and returns the compact peer
// list. A "failure reason" in the response surfaces as *errs.TrackerFailure.
func Query(ctx context.Context, announce string, infoHash, peerID [20]byte, port int, left int64) ([]Peer, error) {
	url := BuildURL(announce, infoHash, peerID, port, left)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building tracker request: %v", errs.ErrPeerIO, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: contacting tracker: %v", errs.ErrPeerIO, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tracker response: %v", errs.ErrPeerIO, err)
	}

	return ParseResponse(body)
}

// ParseResponse decodes a bencoded tracker response body into a peer list.
func ParseResponse(body []byte) ([]Peer, error) {
	v, err := bencode.Decode(body)
	if err != nil {
		return nil, err
	}
	if reason, ok := v.GetString("failure reason"); ok {
		return nil, &errs.TrackerFailure{Reason: string(reason)}
	}
	peersRaw, ok := v.GetString("peers")
	if !ok {
		return nil, fmt.Errorf("%w: tracker response has no \"peers\" field", errs.ErrPeerIO)
	}
	return ParseCompactPeers(peersRaw)
}

// ParseCompactPeers decodes a compact peer list: consecutive 6-byte
// records of {IPv4, port (big-endian)}.
func ParseCompactPeers(b []byte) ([]Peer, error) {
	if len(b)%peerRecordLen != 0 {
		return nil, fmt.Errorf("%w: compact peer list length %d is not a multiple of %d", errs.ErrPeerIO, len(b), peerRecordLen)
	}
	peers := make([]Peer, 0, len(b)/peerRecordLen)
	for i := 0; i < len(b); i += peerRecordLen {
		ip := net.IPv4(b[i], b[i+1], b[i+2], b[i+3])
		port := binary.BigEndian.Uint16(b[i+4 : i+6])
		peers = append(peers, Peer{IP: ip, Port: port})
	}
	return peers, nil
}
