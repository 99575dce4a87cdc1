package asnfmt

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// StringToBinary decodes input according to enc. It is the inverse of BinaryToString.
func StringToBinary(input string, enc EncodingType) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch enc {
	case Binary:
		out = []byte(input)
	case Base64:
		out, err = fromBase64(input)
	case Base64Header:
		out, err = fromPEM(input, "")
	case Base64CrlHeader:
		out, err = fromPEM(input, "X509 CRL")
	case Base64RequestHeader:
		out, err = fromPEM(input, "NEW CERTIFICATE REQUEST")
	case Base64Any:
		out, err = firstOf(input, Base64CrlHeader, Base64RequestHeader, Base64Header, Base64)
	case StringAny:
		out, err = firstOf(input, Base64Header, Base64, Binary)
	case Hex, HexRaw:
		out, err = fromHex(input)
	case HexAddress:
		out, err = fromDump(input, true, false)
	case HexAscii:
		out, err = fromDump(input, false, true)
	case HexAsciiAddress:
		out, err = fromDump(input, true, true)
	case HexAny:
		out, err = firstOf(input, HexAddress, HexAsciiAddress, Hex, HexAscii)
	default:
		return nil, fmt.Errorf("asnfmt: unknown encoding %s", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", enc, err)
	}
	return out, nil
}

// DetectFormat returns the first encoding, in priority order, that decodes input:
// CRL, certificate request, any PEM armor, Base64, HexAddress, HexAsciiAddress,
// Hex, HexAscii. Binary is returned when nothing else matches.
func DetectFormat(input string) EncodingType {
	for _, enc := range []EncodingType{
		Base64CrlHeader,
		Base64RequestHeader,
		Base64Header,
		Base64,
		HexAddress,
		HexAsciiAddress,
		Hex,
		HexAscii,
	} {
		if _, err := StringToBinary(input, enc); err == nil {
			return enc
		}
	}
	return Binary
}

func firstOf(input string, encs ...EncodingType) ([]byte, error) {
	for _, enc := range encs {
		if out, err := StringToBinary(input, enc); err == nil {
			return out, nil
		}
	}
	return nil, ErrInvalidInput
}

// fromBase64 accepts line breaks between Base64 lines but no other whitespace,
// so that hex dumps are never mistaken for Base64.
func fromBase64(input string) ([]byte, error) {
	body := strings.NewReplacer("\r", "", "\n", "").Replace(strings.TrimSpace(input))
	if body == "" || strings.ContainsAny(body, " \t") {
		return nil, ErrInvalidInput
	}
	out, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	return out, nil
}

// fromPEM decodes the Base64 body between "-----BEGIN <label>-----" and the
// matching END line. An empty label accepts any armor.
func fromPEM(input, label string) ([]byte, error) {
	begin := strings.Index(input, pemBegin+label)
	if begin < 0 {
		return nil, ErrInvalidInput
	}
	labelStart := begin + len(pemBegin)
	labelEnd := strings.Index(input[labelStart:], pemDash)
	if labelEnd < 0 {
		return nil, ErrInvalidInput
	}
	found := input[labelStart : labelStart+labelEnd]
	if label != "" && found != label {
		return nil, ErrInvalidInput
	}

	bodyStart := labelStart + labelEnd + len(pemDash)
	footer := pemEnd + found + pemDash
	bodyEnd := strings.Index(input[bodyStart:], footer)
	if bodyEnd < 0 {
		return nil, ErrInvalidInput
	}
	return fromBase64(input[bodyStart : bodyStart+bodyEnd])
}

// fromHex reads hex octets, each written as two digits, separated by any
// number of delimiters. A run of three spaces (the start of an ASCII panel) is rejected.
func fromHex(input string) ([]byte, error) {
	if strings.Contains(input, panelSpace) {
		return nil, ErrInvalidInput
	}
	var out []byte
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case isHexDigit(c):
			if i+1 >= len(input) || !isHexDigit(input[i+1]) {
				return nil, fmt.Errorf("odd hex digit at %d: %w", i, ErrInvalidInput)
			}
			out = append(out, unhex(c)<<4|unhex(input[i+1]))
			i += 2
		case strings.IndexByte(delimiters, c) >= 0:
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at %d: %w", c, i, ErrInvalidInput)
		}
	}
	if len(out) == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}

// fromDump reads the row based dialects. Addresses must match the running
// offset, only the last row may hold fewer than 16 octets and ASCII panels
// must match the octets they describe.
func fromDump(input string, withAddress, withASCII bool) ([]byte, error) {
	var out []byte
	shortRow := false

	for n, line := range strings.Split(input, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if shortRow {
			return nil, fmt.Errorf("line %d follows an incomplete row: %w", n+1, ErrInvalidInput)
		}

		rest := line
		if withAddress {
			end := strings.IndexAny(line, " \t")
			if end < 0 {
				return nil, fmt.Errorf("line %d has no octets: %w", n+1, ErrInvalidInput)
			}
			addr, err := parseAddress(line[:end])
			if err != nil || addr != len(out) {
				return nil, fmt.Errorf("line %d: bad address %q: %w", n+1, line[:end], ErrInvalidInput)
			}
			rest = strings.TrimLeft(line[end:], " \t")
		}

		hexPart, tail := rest, ""
		if withASCII {
			sep := strings.Index(rest, panelSpace)
			if sep < 0 {
				return nil, fmt.Errorf("line %d has no ASCII panel: %w", n+1, ErrInvalidInput)
			}
			hexPart, tail = rest[:sep], rest[sep:]
		} else if strings.Contains(rest, panelSpace) {
			return nil, fmt.Errorf("line %d: unexpected ASCII panel: %w", n+1, ErrInvalidInput)
		}

		row, err := parseRow(hexPart)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		if withASCII {
			if len(tail) < len(row)+len(panelSpace) {
				return nil, fmt.Errorf("line %d: truncated ASCII panel: %w", n+1, ErrInvalidInput)
			}
			pad, panel := tail[:len(tail)-len(row)], tail[len(tail)-len(row):]
			if strings.Trim(pad, " ") != "" || panel != asciiPanel(row) {
				return nil, fmt.Errorf("line %d: ASCII panel does not match: %w", n+1, ErrInvalidInput)
			}
		}

		shortRow = len(row) < rowWidth
		out = append(out, row...)
	}

	if len(out) == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}

func parseAddress(s string) (int, error) {
	if len(s) < 4 || len(s) > 8 || len(s)%2 != 0 {
		return 0, ErrInvalidInput
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, ErrInvalidInput
	}
	return int(v), nil
}

func parseRow(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > rowWidth {
		return nil, fmt.Errorf("%d octets in a row: %w", len(fields), ErrInvalidInput)
	}
	row := make([]byte, len(fields))
	for i, f := range fields {
		if len(f) != 2 || !isHexDigit(f[0]) || !isHexDigit(f[1]) {
			return nil, fmt.Errorf("invalid octet %q: %w", f, ErrInvalidInput)
		}
		row[i] = unhex(f[0])<<4 | unhex(f[1])
	}
	return row, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
