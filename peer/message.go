package peer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/markhalden/bitlet/errs"
)

// Message ids used by the core, per spec §4.4.
const (
	MsgChoke         byte = 0
	MsgUnchoke       byte = 1
	MsgInterested    byte = 2
	MsgNotInterested byte = 3
	MsgHave          byte = 4
	MsgBitfield      byte = 5
	MsgRequest       byte = 6
	MsgPiece         byte = 7
	MsgCancel        byte = 8
)

// Message is a framed peer-wire message. A keep-alive is represented as a
// nil *Message returned by readMessage, never as a zero-valued Message.
type Message struct {
	ID      byte
	Payload []byte
}

func (m *Message) bytes() []byte {
	buf := make([]byte, 4+1+len(m.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(m.Payload)))
	buf[4] = m.ID
	copy(buf[5:], m.Payload)
	return buf
}

func keepAliveBytes() []byte {
	return []byte{0, 0, 0, 0}
}

// Request builds a request message: index, begin and length as three
// big-endian u32s.
func Request(index, begin, length uint32) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	binary.BigEndian.PutUint32(payload[8:12], length)
	return &Message{ID: MsgRequest, Payload: payload}
}

// Interested builds an interested message.
func Interested() *Message { return &Message{ID: MsgInterested} }

// ParsePiece extracts index, begin and the block bytes from a piece
// message's payload.
func ParsePiece(m *Message) (index, begin uint32, block []byte, err error) {
	if m.ID != MsgPiece || len(m.Payload) < 8 {
		return 0, 0, nil, fmt.Errorf("%w: malformed piece message", errs.ErrUnexpectedPeerMessage)
	}
	index = binary.BigEndian.Uint32(m.Payload[0:4])
	begin = binary.BigEndian.Uint32(m.Payload[4:8])
	block = m.Payload[8:]
	return index, begin, block, nil
}

// readMessage reads one framed message from r: a 4-byte big-endian length,
// then (if non-zero) one id byte and length-1 payload bytes. A length of
// zero is a keep-alive, consumed silently and reported as a nil message.
func readMessage(r io.Reader) (*Message, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: reading message length: %v", errs.ErrPeerIO, err)
	}
	length := binary.BigEndian.Uint32(header)
	if length == 0 {
		return nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading message body: %v", errs.ErrPeerIO, err)
	}
	return &Message{ID: body[0], Payload: body[1:]}, nil
}

// writeMessage writes a framed message, or a keep-alive if m is nil.
func writeMessage(w io.Writer, m *Message) error {
	var buf []byte
	if m == nil {
		buf = keepAliveBytes()
	} else {
		buf = m.bytes()
	}
	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: writing message: %v", errs.ErrPeerIO, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", errs.ErrPeerIO, n, len(buf))
	}
	return nil
}
