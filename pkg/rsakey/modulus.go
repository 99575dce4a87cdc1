package rsakey

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Modulus is an unsigned big-endian integer as carried by an INTEGER of a public key.
type Modulus struct {
	b []byte
}

// NewModulus trims leading zero octets from b.
func NewModulus(b []byte) Modulus {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return Modulus{b: append([]byte(nil), b[i:]...)}
}

// ParseModulus reads a hex string.
func ParseModulus(s string) (Modulus, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Modulus{}, err
	}
	return NewModulus(b), nil
}

// Bytes returns the value left-padded with zeros to width octets.
// A width smaller than the value returns it unpadded.
func (m Modulus) Bytes(width int) []byte {
	if width <= len(m.b) {
		return append([]byte(nil), m.b...)
	}
	out := make([]byte, width)
	copy(out[width-len(m.b):], m.b)
	return out
}

// Hex returns the uppercase hex value left-padded with '0' to width characters.
func (m Modulus) Hex(width int) string {
	s := strings.ToUpper(hex.EncodeToString(m.b))
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// Int returns the value as a big.Int.
func (m Modulus) Int() *big.Int {
	return new(big.Int).SetBytes(m.b)
}

// BitLen is the size of the value in bits.
func (m Modulus) BitLen() int {
	return m.Int().BitLen()
}

func (m Modulus) String() string {
	return m.Hex(0)
}
