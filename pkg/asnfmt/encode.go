package asnfmt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/asn1"
)

// ErrInvalidInput is returned when a string does not match the requested encoding.
var ErrInvalidInput = errors.New("asnfmt: invalid input")

type options struct {
	start  int
	count  int
	format Format
	upper  bool
}

// Option tunes BinaryToString.
type Option func(*options)

// WithRange limits the conversion to count bytes starting at start.
// A count of 0 means up to the end of the buffer.
func WithRange(start, count int) Option {
	return func(o *options) {
		o.start = start
		o.count = count
	}
}

// WithFormat selects the line ending style (FormatCRLF by default).
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// WithUpperCase renders hex digits and addresses in upper case.
func WithUpperCase() Option {
	return func(o *options) { o.upper = true }
}

// BinaryToString renders data with the given encoding.
func BinaryToString(data []byte, enc EncodingType, opts ...Option) (string, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.start < 0 || o.start > len(data) || o.count < 0 || o.start+o.count > len(data) {
		return "", fmt.Errorf("asnfmt: range [%d:+%d] outside a %d byte buffer", o.start, o.count, len(data))
	}
	if o.count == 0 {
		o.count = len(data) - o.start
	}
	data = data[o.start : o.start+o.count]

	switch enc {
	case Binary:
		return string(data), nil
	case Base64, Base64Header, Base64CrlHeader, Base64RequestHeader:
		return toBase64(data, enc, o), nil
	case Hex:
		return toHex(data, o), nil
	case HexRaw:
		return hexOctets(data, o.upper, ""), nil
	case HexAddress, HexAscii, HexAsciiAddress:
		return toDump(data, enc, o), nil
	default:
		return "", fmt.Errorf("asnfmt: %s cannot be used for encoding", enc)
	}
}

// PayloadToString renders the payload of the tag r is positioned on.
// An empty payload renders as an empty string.
func PayloadToString(r *asn1.Reader, enc EncodingType, opts ...Option) (string, error) {
	if r.PayloadLength() == 0 {
		return "", nil
	}
	return BinaryToString(r.Contents(), enc, opts...)
}

func lineEnding(f Format) string {
	switch f {
	case FormatLF:
		return "\n"
	case FormatNone:
		return ""
	default:
		return "\r\n"
	}
}

// rowSeparator separates rows of multi line layouts, even with FormatNone.
func rowSeparator(f Format) string {
	if f == FormatLF {
		return "\n"
	}
	return "\r\n"
}

func hexOctet(b byte, upper bool) string {
	if upper {
		return fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%02x", b)
}

func hexOctets(data []byte, upper bool, sep string) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = hexOctet(b, upper)
	}
	return strings.Join(parts, sep)
}

// hexRow renders up to 16 octets with a double space after the 8th.
func hexRow(row []byte, upper bool) string {
	var sb strings.Builder
	for i, b := range row {
		switch {
		case i == 8:
			sb.WriteString("  ")
		case i > 0:
			sb.WriteString(" ")
		}
		sb.WriteString(hexOctet(b, upper))
	}
	return sb.String()
}

// fullRowWidth is the rendered width of a complete 16 octet row.
var fullRowWidth = len(hexRow(make([]byte, rowWidth), false))

func asciiPanel(row []byte) string {
	out := make([]byte, len(row))
	for i, b := range row {
		if b < 32 || b > 126 {
			out[i] = '.'
		} else {
			out[i] = b
		}
	}
	return string(out)
}

// addressWidth is the number of hex digits of the largest offset, rounded up to even, at least 4.
func addressWidth(n int) int {
	w := len(strconv.FormatInt(int64(n), 16))
	if w%2 != 0 {
		w++
	}
	if w < 4 {
		w = 4
	}
	return w
}

func rows(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := min(rowWidth, len(data))
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func toHex(data []byte, o options) string {
	if len(data) == 0 {
		return ""
	}
	if o.format == FormatNone {
		return hexOctets(data, o.upper, " ")
	}
	var lines []string
	for _, row := range rows(data) {
		lines = append(lines, hexRow(row, o.upper))
	}
	return strings.Join(lines, rowSeparator(o.format)) + lineEnding(o.format)
}

func toDump(data []byte, enc EncodingType, o options) string {
	if len(data) == 0 {
		return ""
	}
	width := addressWidth(len(data))
	addrFormat := "%0*x"
	if o.upper {
		addrFormat = "%0*X"
	}

	var lines []string
	for i, row := range rows(data) {
		var sb strings.Builder
		if enc != HexAscii {
			fmt.Fprintf(&sb, addrFormat, width, i*rowWidth)
			sb.WriteString(addressSpace)
		}
		hex := hexRow(row, o.upper)
		sb.WriteString(hex)
		if enc != HexAddress {
			sb.WriteString(strings.Repeat(" ", fullRowWidth-len(hex)))
			sb.WriteString(panelSpace)
			sb.WriteString(asciiPanel(row))
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, rowSeparator(o.format)) + lineEnding(o.format)
}

func toBase64(data []byte, enc EncodingType, o options) string {
	body := base64.StdEncoding.EncodeToString(data)
	sep := ""
	if o.format != FormatNone {
		sep = rowSeparator(o.format)
		var lines []string
		for len(body) > base64Width {
			lines = append(lines, body[:base64Width])
			body = body[base64Width:]
		}
		body = strings.Join(append(lines, body), sep)
	}

	switch enc {
	case Base64Header:
		body = CertificateHeader + sep + body + sep + CertificateFooter
	case Base64CrlHeader:
		body = CrlHeader + sep + body + sep + CrlFooter
	case Base64RequestHeader:
		body = RequestHeader + sep + body + sep + RequestFooter
	}
	return body + lineEnding(o.format)
}
