package hsm

import (
	"encoding/binary"
	"fmt"
)

// FRAMING LOGIC:
// A frame is [2-byte big-endian length][4-byte header][message]. The length counts
// the header and the message.
//
// The HSM does not always echo a length prefix consistent with what it actually sends,
// so Unframe is permissive: one transport read is one message and the prefix is kept
// as an opaque echo. UnframeStrict enforces the prefix and the header for deployments
// where the peer is known to be well-behaved.

// MaxFrameLength is the largest value a 2-octet prefix can declare.
const MaxFrameLength = 0xFFFF

// Message is a decoded frame.
type Message struct {
	Length  uint16 // Declared prefix, as received.
	Header  Header
	Payload []byte
}

// Frame encodes payload behind the default header.
func Frame(payload []byte) ([]byte, error) {
	return FrameWithHeader(DefaultHeader, payload)
}

// FrameWithHeader encodes payload behind header.
func FrameWithHeader(header Header, payload []byte) ([]byte, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}

	n := len(header) + len(payload)
	if n > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	out := make([]byte, 2, 2+n)
	binary.BigEndian.PutUint16(out, uint16(n))
	out = append(out, header...)
	return append(out, payload...), nil
}

// Unframe splits raw into prefix, header and payload without checking the prefix.
// raw must at least hold the prefix and the header.
func Unframe(raw []byte) (*Message, error) {
	if len(raw) < 2+HeaderLength {
		return nil, &ProtocolError{Reason: fmt.Sprintf("frame of %d bytes cannot hold a prefix and a header", len(raw))}
	}

	payload := make([]byte, len(raw)-2-HeaderLength)
	copy(payload, raw[2+HeaderLength:])

	return &Message{
		Length:  binary.BigEndian.Uint16(raw),
		Header:  Header(raw[2 : 2+HeaderLength]),
		Payload: payload,
	}, nil
}

// UnframeStrict is Unframe plus two checks: the prefix must equal len(raw)-2 and
// the header must equal want.
func UnframeStrict(raw []byte, want Header) (*Message, error) {
	msg, err := Unframe(raw)
	if err != nil {
		return nil, err
	}

	if int(msg.Length) != len(raw)-2 {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("prefix declares %d bytes, frame carries %d", msg.Length, len(raw)-2),
			Err:    ErrFrameLength,
		}
	}
	if msg.Header != want {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("header %q, want %q", string(msg.Header), string(want)),
			Err:    ErrFrameHeader,
		}
	}
	return msg, nil
}
