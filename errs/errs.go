// Package errs defines the error taxonomy shared by every layer of the
// client: bencode, metainfo, tracker, peer and download all wrap one of
// these sentinels with fmt.Errorf so callers can classify a failure with
// errors.Is without parsing strings.
package errs

import "errors"

var (
	// ErrMalformedBencode is returned by the bencode decoder on any
	// grammar violation: truncated input, unknown type byte, bad
	// integer/length digits, missing ':' or 'e', a non-string dict key,
	// or a duplicate dict key.
	ErrMalformedBencode = errors.New("malformed bencode")

	// ErrInvalidMetainfo is returned when a parsed torrent is missing a
	// required field, has a field of the wrong type, or fails one of the
	// piece-accounting invariants (pieces length not a multiple of 20,
	// non-positive piece length or length).
	ErrInvalidMetainfo = errors.New("invalid metainfo")

	// ErrHandshakeFailed is returned on a short handshake read, a wrong
	// length byte or protocol string, or an info-hash mismatch.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrPeerIO covers short reads/writes, socket errors and read
	// timeouts on an established peer connection, failed peer dials, and
	// tracker request failures (unreachable tracker, a response without
	// "peers", or a compact peer list of the wrong length).
	ErrPeerIO = errors.New("peer io error")

	// ErrUnexpectedPeerMessage is returned when a peer sends a message
	// that violates the expected protocol ordering (e.g. anything but
	// bitfield as the first message, or a non-unchoke reply once
	// interested that isn't choke/have/keep-alive).
	ErrUnexpectedPeerMessage = errors.New("unexpected peer message")

	// ErrPieceHashMismatch is returned when a fully-assembled piece's
	// SHA-1 digest does not match the metainfo's recorded hash.
	ErrPieceHashMismatch = errors.New("piece hash mismatch")

	// ErrFileIO covers failures reading or writing the output file.
	ErrFileIO = errors.New("file io error")

	// ErrUsage is returned by the CLI layer on a missing/malformed
	// subcommand invocation.
	ErrUsage = errors.New("usage error")
)

// TrackerFailure wraps the "failure reason" string a tracker returns
// instead of a peer list.
type TrackerFailure struct {
	Reason string
}

func (e *TrackerFailure) Error() string {
	return "tracker failure: " + e.Reason
}
