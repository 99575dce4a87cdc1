package asn1

import (
	"fmt"

	"github.com/gregLibert/hsm-gateway/pkg/bits"
)

// maxLengthOctets is the largest long-form length accepted (lengths up to 2^32-1).
const maxLengthOctets = 4

// LengthBytes returns the DER length octets for a payload of n bytes.
// Short form is used below 128, long form (0x81..0x84 followed by big-endian octets) otherwise.
func LengthBytes(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}

	var octets []byte
	for v := uint64(n); v > 0; v >>= 8 {
		octets = append([]byte{byte(v)}, octets...)
	}
	return append([]byte{bits.Set(byte(len(octets)), 8)}, octets...)
}

// PayloadLength decodes the DER length octets at the start of lengthOctets.
// It is the inverse of LengthBytes.
func PayloadLength(lengthOctets []byte) (int, error) {
	if len(lengthOctets) == 0 {
		return 0, ErrInvalidData
	}

	first := lengthOctets[0]
	if !bits.IsSet(first, 8) {
		return int(first), nil
	}

	n := int(bits.Clear(first, 8))
	if n == 0 {
		return 0, fmt.Errorf("indefinite length form: %w", ErrInvalidData)
	}
	if n > maxLengthOctets {
		return 0, &OverflowError{Msg: "data length is too large"}
	}
	if len(lengthOctets) < 1+n {
		return 0, ErrTruncated
	}

	var length uint64
	for _, b := range lengthOctets[1 : 1+n] {
		length = length<<8 | uint64(b)
	}
	return int(length), nil
}

// Encode wraps raw into a TLV with the given identifier octet.
// A nil or empty raw produces a zero-length value ({tag, 0x00}).
func Encode(raw []byte, tag byte) []byte {
	length := LengthBytes(len(raw))
	out := make([]byte, 0, 1+len(length)+len(raw))
	out = append(out, tag)
	out = append(out, length...)
	return append(out, raw...)
}
