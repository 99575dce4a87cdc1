package asn1

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"unicode/utf16"
	"unicode/utf8"
)

// Universal codecs. Every Encode function returns a complete TLV and every
// Decode function expects one; the identifier octet must match the type.

// contents validates the TLV header of raw against want and returns the content octets.
func contents(raw []byte, want Type) ([]byte, error) {
	if len(raw) < 2 {
		return nil, ErrInvalidData
	}
	if raw[0] != byte(want) {
		return nil, &ValueError{Type: want, Msg: fmt.Sprintf("unexpected tag 0x%02X", raw[0])}
	}
	length, err := PayloadLength(raw[1:])
	if err != nil {
		return nil, err
	}
	header := 2
	if raw[1] >= 0x80 {
		header += int(raw[1] &^ 0x80)
	}
	if header+length > len(raw) {
		return nil, ErrTruncated
	}
	return raw[header : header+length], nil
}

// --- INTEGER ---

// EncodeInteger encodes n as a minimal two's complement INTEGER.
func EncodeInteger(n *big.Int) []byte {
	return Encode(integerBytes(n), byte(TypeInteger))
}

// EncodeInt64 is a convenience wrapper around EncodeInteger.
func EncodeInt64(n int64) []byte {
	return EncodeInteger(big.NewInt(n))
}

func integerBytes(n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return []byte{0x00}
	case 1:
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	default:
		// -n-1 inverted gives the two's complement of n
		m := new(big.Int).Neg(n)
		m.Sub(m, big.NewInt(1))
		b := m.Bytes()
		for i := range b {
			b[i] ^= 0xFF
		}
		if len(b) == 0 || b[0]&0x80 == 0 {
			b = append([]byte{0xFF}, b...)
		}
		return b
	}
}

// DecodeInteger decodes a two's complement INTEGER of any size.
func DecodeInteger(raw []byte) (*big.Int, error) {
	b, err := contents(raw, TypeInteger)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, &ValueError{Type: TypeInteger, Msg: "empty value"}
	}
	return integerFromBytes(b), nil
}

func integerFromBytes(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if b[0]&0x80 == 0 {
		return n
	}
	inverted := make([]byte, len(b))
	for i := range b {
		inverted[i] = ^b[i]
	}
	n.SetBytes(inverted)
	n.Add(n, big.NewInt(1))
	return n.Neg(n)
}

// DecodeInt64 decodes an INTEGER that fits in 64 bits.
func DecodeInt64(raw []byte) (int64, error) {
	n, err := DecodeInteger(raw)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, &ValueError{Type: TypeInteger, Msg: "value does not fit in 64 bits"}
	}
	return n.Int64(), nil
}

// --- BOOLEAN / NULL ---

// EncodeBoolean encodes v using the DER canonical values 0x00 and 0xFF.
func EncodeBoolean(v bool) []byte {
	if v {
		return []byte{byte(TypeBoolean), 0x01, 0xFF}
	}
	return []byte{byte(TypeBoolean), 0x01, 0x00}
}

// DecodeBoolean decodes a DER BOOLEAN.
func DecodeBoolean(raw []byte) (bool, error) {
	if len(raw) != 3 || raw[0] != byte(TypeBoolean) || raw[1] != 0x01 {
		return false, &ValueError{Type: TypeBoolean, Msg: "expected 01 01 xx"}
	}
	switch raw[2] {
	case 0x00:
		return false, nil
	case 0xFF:
		return true, nil
	default:
		return false, &ValueError{Type: TypeBoolean, Msg: fmt.Sprintf("non canonical value 0x%02X", raw[2])}
	}
}

// EncodeNull returns the NULL TLV.
func EncodeNull() []byte {
	return []byte{byte(TypeNull), 0x00}
}

// --- OCTET STRING / BIT STRING ---

// EncodeOctetString wraps value into an OCTET STRING.
func EncodeOctetString(value []byte) []byte {
	return Encode(value, byte(TypeOctetString))
}

// DecodeOctetString returns a copy of the OCTET STRING value.
func DecodeOctetString(raw []byte) ([]byte, error) {
	b, err := contents(raw, TypeOctetString)
	if err != nil {
		return nil, err
	}
	return clone(b), nil
}

// EncodeBitString encodes value with the given number of unused bits in the last octet.
func EncodeBitString(value []byte, unusedBits int) ([]byte, error) {
	if unusedBits < 0 || unusedBits > 7 {
		return nil, &ValueError{Type: TypeBitString, Msg: fmt.Sprintf("invalid unused bits count %d", unusedBits)}
	}
	if len(value) == 0 && unusedBits != 0 {
		return nil, &ValueError{Type: TypeBitString, Msg: "unused bits on an empty value"}
	}
	return Encode(append([]byte{byte(unusedBits)}, value...), byte(TypeBitString)), nil
}

// DecodeBitString returns the value and the number of unused bits.
func DecodeBitString(raw []byte) ([]byte, int, error) {
	b, err := contents(raw, TypeBitString)
	if err != nil {
		return nil, 0, err
	}
	if len(b) == 0 {
		return nil, 0, &ValueError{Type: TypeBitString, Msg: "missing unused bits octet"}
	}
	if b[0] > 7 {
		return nil, 0, &ValueError{Type: TypeBitString, Msg: fmt.Sprintf("invalid unused bits count %d", b[0])}
	}
	return clone(b[1:]), int(b[0]), nil
}

// --- character strings ---

// stringTypes lists the string types in the order EncodeAnyString tries them.
var stringTypes = []Type{
	TypePrintableString,
	TypeIA5String,
	TypeVisibleString,
	TypeNumericString,
	TypeTeletexString,
	TypeUTF8String,
	TypeBMPString,
	TypeUniversalString,
}

// IsStringType reports whether t is one of the supported character string types.
func IsStringType(t Type) bool {
	for _, s := range stringTypes {
		if s == t {
			return true
		}
	}
	return false
}

// EncodeString encodes s as a character string of type t.
func EncodeString(s string, t Type) ([]byte, error) {
	var payload []byte
	switch t {
	case TypeUTF8String:
		if !utf8.ValidString(s) {
			return nil, &ValueError{Type: t, Msg: "invalid UTF-8"}
		}
		payload = []byte(s)
	case TypeBMPString:
		for _, r := range s {
			if r > 0xFFFF {
				return nil, &ValueError{Type: t, Msg: fmt.Sprintf("character %U outside the basic multilingual plane", r)}
			}
		}
		for _, u := range utf16.Encode([]rune(s)) {
			payload = binary.BigEndian.AppendUint16(payload, u)
		}
	case TypeUniversalString:
		for _, r := range s {
			payload = binary.BigEndian.AppendUint32(payload, uint32(r))
		}
	default:
		check, ok := charsets[t]
		if !ok {
			return nil, &ValueError{Type: t, Msg: "not a string type"}
		}
		for i := 0; i < len(s); i++ {
			if !check(s[i]) {
				return nil, &ValueError{Type: t, Msg: fmt.Sprintf("invalid character 0x%02X at %d", s[i], i)}
			}
		}
		payload = []byte(s)
	}
	return Encode(payload, byte(t)), nil
}

// DecodeString decodes a character string of type t.
func DecodeString(raw []byte, t Type) (string, error) {
	b, err := contents(raw, t)
	if err != nil {
		return "", err
	}
	switch t {
	case TypeUTF8String:
		if !utf8.Valid(b) {
			return "", &ValueError{Type: t, Msg: "invalid UTF-8"}
		}
		return string(b), nil
	case TypeBMPString:
		if len(b)%2 != 0 {
			return "", &ValueError{Type: t, Msg: "odd length"}
		}
		units := make([]uint16, len(b)/2)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		return string(utf16.Decode(units)), nil
	case TypeUniversalString:
		if len(b)%4 != 0 {
			return "", &ValueError{Type: t, Msg: "length is not a multiple of 4"}
		}
		var sb bytes.Buffer
		for i := 0; i < len(b); i += 4 {
			r := rune(binary.BigEndian.Uint32(b[i:]))
			if !utf8.ValidRune(r) {
				return "", &ValueError{Type: t, Msg: fmt.Sprintf("invalid code point 0x%X", uint32(r))}
			}
			sb.WriteRune(r)
		}
		return sb.String(), nil
	default:
		check, ok := charsets[t]
		if !ok {
			return "", &ValueError{Type: t, Msg: "not a string type"}
		}
		for i, c := range b {
			if !check(c) {
				return "", &ValueError{Type: t, Msg: fmt.Sprintf("invalid character 0x%02X at %d", c, i)}
			}
		}
		return string(b), nil
	}
}

// EncodeAnyString encodes s with the first of types that accepts it.
// With no types, PrintableString, IA5String, VisibleString, NumericString,
// TeletexString, UTF8String, BMPString and UniversalString are tried in that order.
func EncodeAnyString(s string, types ...Type) ([]byte, error) {
	if len(types) == 0 {
		types = stringTypes
	}
	var lastErr error
	for _, t := range types {
		raw, err := EncodeString(s, t)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// DecodeAnyString decodes raw according to its own tag, which must be a string type.
func DecodeAnyString(raw []byte) (string, error) {
	if len(raw) < 2 {
		return "", ErrInvalidData
	}
	t := Type(raw[0])
	if !IsStringType(t) {
		return "", &ValueError{Type: t, Msg: "not a string type"}
	}
	return DecodeString(raw, t)
}

var charsets = map[Type]func(byte) bool{
	TypeIA5String:       func(c byte) bool { return c <= 127 },
	TypeTeletexString:   func(c byte) bool { return c <= 127 },
	TypeVisibleString:   func(c byte) bool { return c >= 32 && c <= 126 },
	TypeNumericString:   func(c byte) bool { return c == ' ' || (c >= '0' && c <= '9') },
	TypePrintableString: isPrintable,
}

func isPrintable(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case ' ', '\'', '(', ')', '+', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}
