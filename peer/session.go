// Package peer implements one peer-wire session: the TCP handshake, framed
// message I/O, and the handshake/bitfield/interested/unchoke state machine
// of spec §4.4–§4.5. A Session owns exactly one socket from a successful
// handshake until Close; any error invalidates it.
package peer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/markhalden/bitlet/errs"
)

// readTimeout bounds how long a single frame read may block, per spec §5's
// suggested 30s peer I/O deadline.
const readTimeout = 30 * time.Second

const dialTimeout = 5 * time.Second

// requestsPerSecond caps how fast a session issues request messages to its
// peer once pipelining is in play, so a fast local loop can't flood one
// remote peer with an unbounded request burst.
const requestsPerSecond = 50

// State is the peer session's position in the §4.5 state machine.
type State int

const (
	Handshaked State = iota
	GotBitfield
	InterestedSent
	Ready
	Done
	Failed
)

// Session is one post-connect peer-wire conversation.
type Session struct {
	conn         net.Conn
	InfoHash     [20]byte
	PeerID       [20]byte
	RemotePeerID [20]byte
	BitField     *BitField
	State        State

	limiter *rate.Limiter
	log     zerolog.Logger
}

// Dial connects to addr, performs the handshake, and returns a Session in
// state Handshaked. The caller still owes a call to Prepare before
// downloading pieces, and must Close the session on every exit path.
func Dial(ctx context.Context, addr string, infoHash, peerID [20]byte, log zerolog.Logger) (*Session, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", errs.ErrPeerIO, addr, err)
	}

	s := &Session{
		conn:     conn,
		InfoHash: infoHash,
		PeerID:   peerID,
		State:    Handshaked,
		limiter:  rate.NewLimiter(requestsPerSecond, 1),
		log:      log.With().Str("peer", addr).Logger(),
	}

	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake() error {
	s.conn.SetDeadline(time.Now().Add(dialTimeout))
	defer s.conn.SetDeadline(time.Time{})

	hs := Handshake{InfoHash: s.InfoHash, PeerID: s.PeerID}
	if err := writeAll(s.conn, hs.Bytes()); err != nil {
		return err
	}

	resp := make([]byte, handshakeLen)
	if _, err := readFull(s.conn, resp); err != nil {
		return err
	}
	remotePeerID, err := ParseHandshake(resp, s.InfoHash)
	if err != nil {
		return err
	}
	s.RemotePeerID = remotePeerID
	s.log.Debug().Str("remote_peer_id", fmt.Sprintf("%x", remotePeerID)).Msg("handshake complete")
	return nil
}

// Prepare drives the session from Handshaked to Ready: the first inbound
// message must be a bitfield (keep-alives tolerated), then an interested
// message is sent and any choke/have/keep-alive is ignored until unchoke
// arrives. Any other message aborts with ErrUnexpectedPeerMessage.
func (s *Session) Prepare(ctx context.Context) error {
	var msg *Message
	for msg == nil {
		m, err := s.nextMessage(ctx)
		if err != nil {
			return err
		}
		msg = m // nil is a keep-alive
	}
	if msg.ID != MsgBitfield {
		return fmt.Errorf("%w: expected bitfield as first message", errs.ErrUnexpectedPeerMessage)
	}
	s.BitField = BitFieldFromPayload(msg.Payload)
	s.State = GotBitfield

	if err := s.send(Interested()); err != nil {
		return err
	}
	s.State = InterestedSent

	for {
		msg, err := s.nextMessage(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			continue // keep-alive
		}
		switch msg.ID {
		case MsgUnchoke:
			s.State = Ready
			return nil
		case MsgChoke, MsgHave:
			continue
		default:
			return fmt.Errorf("%w: expected unchoke, got message id %d", errs.ErrUnexpectedPeerMessage, msg.ID)
		}
	}
}

// RequestBlock sends a request message, throttled by the session's rate
// limiter.
func (s *Session) RequestBlock(ctx context.Context, index, begin, length uint32) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: waiting to send request: %v", errs.ErrPeerIO, err)
	}
	return s.send(Request(index, begin, length))
}

// NextPieceBlock reads the next message, skipping keep-alives, have and
// choke messages, and returns the (index, begin, block) of the next piece
// message. Any other message id aborts with ErrUnexpectedPeerMessage.
func (s *Session) NextPieceBlock(ctx context.Context) (index, begin uint32, block []byte, err error) {
	for {
		msg, err := s.nextMessage(ctx)
		if err != nil {
			return 0, 0, nil, err
		}
		if msg == nil {
			continue // keep-alive
		}
		switch msg.ID {
		case MsgPiece:
			return ParsePiece(msg)
		case MsgHave, MsgChoke:
			continue
		default:
			return 0, 0, nil, fmt.Errorf("%w: expected piece, got message id %d", errs.ErrUnexpectedPeerMessage, msg.ID)
		}
	}
}

func (s *Session) nextMessage(ctx context.Context) (*Message, error) {
	deadline := time.Now().Add(readTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	s.conn.SetReadDeadline(deadline)
	return readMessage(s.conn)
}

func (s *Session) send(m *Message) error {
	s.conn.SetWriteDeadline(time.Now().Add(readTimeout))
	return writeMessage(s.conn, m)
}

// Close closes the underlying socket. Safe to call more than once.
func (s *Session) Close() error {
	s.State = Done
	return s.conn.Close()
}

func writeAll(conn net.Conn, buf []byte) error {
	n, err := conn.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPeerIO, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", errs.ErrPeerIO, n, len(buf))
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, fmt.Errorf("%w: %v", errs.ErrPeerIO, err)
		}
		total += n
	}
	return total, nil
}
