package hsm

import "fmt"

// DefaultHeader is the message header used when none is configured.
const DefaultHeader Header = "HEAD"

// HeaderLength is the fixed size of the message header.
const HeaderLength = 4

// Header is the 4-octet ASCII message header placed after the length prefix.
// HSMs echo it back, so it can carry a caller chosen reference.
type Header string

// NewHeader validates s as a message header.
func NewHeader(s string) (Header, error) {
	h := Header(s)
	if err := h.Validate(); err != nil {
		return "", err
	}
	return h, nil
}

// Validate checks that h is exactly 4 printable ASCII characters.
func (h Header) Validate() error {
	if len(h) != HeaderLength {
		return fmt.Errorf("%w: %q is %d bytes long, want %d", ErrInvalidHeader, string(h), len(h), HeaderLength)
	}
	for i := 0; i < len(h); i++ {
		if h[i] < 0x20 || h[i] > 0x7E {
			return fmt.Errorf("%w: non printable byte 0x%02X at %d", ErrInvalidHeader, h[i], i)
		}
	}
	return nil
}
