package rsakey

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// privateKeyLengthDigits is the size of the ASCII length prefix of a private key.
const privateKeyLengthDigits = 4

// PrivateKey is a private key encrypted under the HSM local master key. Its
// content is opaque: it is only ever sent back to the HSM.
type PrivateKey struct {
	b []byte
}

// NewPrivateKey wraps key bytes without length prefix.
func NewPrivateKey(b []byte) *PrivateKey {
	return &PrivateKey{b: append([]byte(nil), b...)}
}

// ReadPrivateKey reads a 4-digit decimal length followed by that many key bytes.
// It returns the key and the number of bytes consumed.
func ReadPrivateKey(data []byte) (*PrivateKey, int, error) {
	if len(data) < privateKeyLengthDigits {
		return nil, 0, fmt.Errorf("%w: %d bytes, need a %d-digit prefix", ErrPrivateKeyLength, len(data), privateKeyLengthDigits)
	}

	prefix := string(data[:privateKeyLengthDigits])
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return nil, 0, fmt.Errorf("%w: prefix %q", ErrPrivateKeyLength, prefix)
	}

	end := privateKeyLengthDigits + n
	if end > len(data) {
		return nil, 0, fmt.Errorf("%w: prefix declares %d bytes, %d available", ErrPrivateKeyLength, n, len(data)-privateKeyLengthDigits)
	}
	return NewPrivateKey(data[privateKeyLengthDigits:end]), end, nil
}

// Len is the number of key bytes, prefix excluded.
func (k *PrivateKey) Len() int {
	return len(k.b)
}

// Bytes returns the key without length prefix.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.b...)
}

// WithLength returns the key behind its 4-digit length prefix, as the HSM expects it.
func (k *PrivateKey) WithLength() []byte {
	out := make([]byte, 0, privateKeyLengthDigits+len(k.b))
	out = append(out, fmt.Sprintf("%04d", len(k.b))...)
	return append(out, k.b...)
}

// Hex returns the key without prefix as uppercase hex.
func (k *PrivateKey) Hex() string {
	return strings.ToUpper(hex.EncodeToString(k.b))
}

// HexWithLength returns WithLength as uppercase hex.
func (k *PrivateKey) HexWithLength() string {
	return strings.ToUpper(hex.EncodeToString(k.WithLength()))
}
