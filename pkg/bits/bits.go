// Package bits offers small helpers to inspect single octets, such as the
// identifier octet of an ASN.1 tag. Bits are numbered 1 (least significant)
// to 8 (most significant), as in X.690 and ISO 7816.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 8 to 7).
// Example: GetRange(0b1010_0000, 8, 7) returns 2 (0b10), the ASN.1 class of
// a context-specific tag.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// Set returns b with the n-th bit raised.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with the n-th bit lowered.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}
