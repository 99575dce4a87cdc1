package asn1

import (
	"fmt"
	"strconv"
	"strings"
)

// maxOIDLength bounds the dotted representation accepted by EncodeOID.
const maxOIDLength = 8096

// oidNames maps well known object identifiers found in key material and certificates.
var oidNames = map[string]string{
	"1.2.840.113549.1.1.1":   "rsaEncryption",
	"1.2.840.113549.1.1.5":   "sha1WithRSAEncryption",
	"1.2.840.113549.1.1.11":  "sha256WithRSAEncryption",
	"1.2.840.113549.1.1.12":  "sha384WithRSAEncryption",
	"1.2.840.113549.1.1.13":  "sha512WithRSAEncryption",
	"1.2.840.113549.1.9.1":   "emailAddress",
	"1.2.840.10045.2.1":      "ecPublicKey",
	"1.2.840.10045.4.3.2":    "ecdsa-with-SHA256",
	"1.3.14.3.2.26":          "sha1",
	"2.16.840.1.101.3.4.2.1": "sha256",
	"2.5.4.3":                "commonName",
	"2.5.4.6":                "countryName",
	"2.5.4.7":                "localityName",
	"2.5.4.8":                "stateOrProvinceName",
	"2.5.4.10":               "organizationName",
	"2.5.4.11":               "organizationalUnitName",
	"2.5.29.14":              "subjectKeyIdentifier",
	"2.5.29.15":              "keyUsage",
	"2.5.29.17":              "subjectAltName",
	"2.5.29.19":              "basicConstraints",
	"2.5.29.35":              "authorityKeyIdentifier",
}

// OIDName returns the friendly name of oid, or "" if it is unknown.
func OIDName(oid string) string {
	return oidNames[oid]
}

// EncodeOID encodes a dotted object identifier such as "1.2.840.113549.1.1.1".
func EncodeOID(oid string) ([]byte, error) {
	arcs, err := parseOID(oid)
	if err != nil {
		return nil, err
	}

	payload := appendBase128(nil, arcs[0]*40+arcs[1])
	for _, arc := range arcs[2:] {
		payload = appendBase128(payload, arc)
	}
	return Encode(payload, byte(TypeObjectIdentifier)), nil
}

// DecodeOID returns the dotted representation of an OBJECT IDENTIFIER.
func DecodeOID(raw []byte) (string, error) {
	b, err := contents(raw, TypeObjectIdentifier)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", &ValueError{Type: TypeObjectIdentifier, Msg: "empty value"}
	}

	var arcs []uint64
	for i := 0; i < len(b); {
		v, n, err := readBase128(b[i:])
		if err != nil {
			return "", err
		}
		if i == 0 {
			// X.690 8.19.4: the first subidentifier packs the first two arcs
			if v < 80 {
				arcs = append(arcs, v/40, v%40)
			} else {
				arcs = append(arcs, 2, v-80)
			}
		} else {
			arcs = append(arcs, v)
		}
		i += n
	}

	parts := make([]string, len(arcs))
	for i, a := range arcs {
		parts[i] = strconv.FormatUint(a, 10)
	}
	return strings.Join(parts, "."), nil
}

func parseOID(oid string) ([]uint64, error) {
	invalid := func(msg string) error {
		return &ValueError{Type: TypeObjectIdentifier, Msg: fmt.Sprintf("%q: %s", oid, msg)}
	}
	if len(oid) == 0 || len(oid) > maxOIDLength {
		return nil, invalid("invalid length")
	}

	parts := strings.Split(oid, ".")
	if len(parts) < 3 {
		return nil, invalid("at least three arcs are required")
	}
	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, invalid(fmt.Sprintf("arc %d is not a number", i+1))
		}
		arcs[i] = v
	}
	if arcs[0] > 2 {
		return nil, invalid("first arc must be 0, 1 or 2")
	}
	if arcs[0] < 2 && arcs[1] > 39 {
		return nil, invalid("second arc must be lower than 40")
	}
	if arcs[1] > (1<<63-1)/2 {
		return nil, invalid("second arc is too large")
	}
	return arcs, nil
}

func appendBase128(dst []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}

func readBase128(b []byte) (uint64, int, error) {
	var v uint64
	for i, c := range b {
		if i == 0 && c == 0x80 {
			return 0, 0, &ValueError{Type: TypeObjectIdentifier, Msg: "non minimal subidentifier"}
		}
		if v > (1<<64-1)>>7 {
			return 0, 0, &ValueError{Type: TypeObjectIdentifier, Msg: "subidentifier overflows 64 bits"}
		}
		v = v<<7 | uint64(c&0x7F)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, &ValueError{Type: TypeObjectIdentifier, Msg: "truncated subidentifier"}
}
