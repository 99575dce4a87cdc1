/*
Package asnfmt converts binary buffers (typically DER encoded key material)
to and from the text representations operators exchange: hex dumps, Base64
and PEM armored Base64.

# Encodings

Four hex dialects are supported, all with 16 octets per row and a double
space after the 8th octet:

	Hex              30 82 01 0a ...
	HexAddress       0000    30 82 01 0a ...
	HexAscii         30 82 01 0a ...   0...
	HexAsciiAddress  0000    30 82 01 0a ...   0...

HexRaw is a single unbroken line of hex digits. Base64 lines are wrapped at
64 characters and may be armored with certificate, CRL or certificate request
PEM headers.

Every encoder has an exact inverse in StringToBinary, and DetectFormat
guesses the encoding of an unknown input.
*/
package asnfmt

import "fmt"

// EncodingType identifies a text representation of binary data.
type EncodingType int

const (
	// Binary carries the octets unchanged, one string byte per octet.
	Binary EncodingType = iota
	Base64
	Base64Header
	Base64CrlHeader
	Base64RequestHeader
	// Base64Any accepts any PEM armor or bare Base64 (decoding only).
	Base64Any
	// StringAny accepts PEM, Base64 or raw bytes (decoding only).
	StringAny
	Hex
	HexRaw
	HexAddress
	HexAscii
	HexAsciiAddress
	// HexAny accepts any hex dialect (decoding only).
	HexAny
)

var encodingNames = map[EncodingType]string{
	Binary:              "Binary",
	Base64:              "Base64",
	Base64Header:        "Base64Header",
	Base64CrlHeader:     "Base64CrlHeader",
	Base64RequestHeader: "Base64RequestHeader",
	Base64Any:           "Base64Any",
	StringAny:           "StringAny",
	Hex:                 "Hex",
	HexRaw:              "HexRaw",
	HexAddress:          "HexAddress",
	HexAscii:            "HexAscii",
	HexAsciiAddress:     "HexAsciiAddress",
	HexAny:              "HexAny",
}

func (e EncodingType) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EncodingType(%d)", int(e))
}

// ParseEncodingType resolves a name produced by EncodingType.String, case sensitive.
func ParseEncodingType(name string) (EncodingType, error) {
	for e, n := range encodingNames {
		if n == name {
			return e, nil
		}
	}
	return Binary, fmt.Errorf("asnfmt: unknown encoding %q", name)
}

// Format controls line endings.
type Format int

const (
	// FormatCRLF ends lines with "\r\n".
	FormatCRLF Format = iota
	// FormatLF ends lines with "\n".
	FormatLF
	// FormatNone adds no trailing line ending and, where the layout allows it,
	// keeps the output on a single line.
	FormatNone
)

// PEM armor lines.
const (
	CertificateHeader = "-----BEGIN CERTIFICATE-----"
	CertificateFooter = "-----END CERTIFICATE-----"
	CrlHeader         = "-----BEGIN X509 CRL-----"
	CrlFooter         = "-----END X509 CRL-----"
	RequestHeader     = "-----BEGIN NEW CERTIFICATE REQUEST-----"
	RequestFooter     = "-----END NEW CERTIFICATE REQUEST-----"

	pemBegin = "-----BEGIN "
	pemEnd   = "-----END "
	pemDash  = "-----"
)

const (
	rowWidth     = 16
	base64Width  = 64
	addressSpace = "    "
	panelSpace   = "   "
)

// delimiters may separate hex octets.
const delimiters = " -:\t\n\r"
