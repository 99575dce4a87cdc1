package asn1

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ViewOptions tunes ViewValue.
type ViewOptions struct {
	// DecimalIntegers renders INTEGER values in base 10 instead of hex.
	DecimalIntegers bool
}

// ViewValue returns a human readable rendering of the tag the reader is positioned on.
func ViewValue(r *Reader) (string, error) {
	return ViewValueWith(r, ViewOptions{})
}

// ViewValueWith is ViewValue with explicit options.
func ViewValueWith(r *Reader, opts ViewOptions) (string, error) {
	if r.PayloadLength() == 0 && r.Tag() != byte(TypeNull) {
		return "NULL", nil
	}

	raw := r.TagRawData()
	switch Type(r.Tag()) {
	case TypeBoolean:
		// any non zero value is true in BER
		if r.PayloadLength() != 1 {
			return "", &ValueError{Type: TypeBoolean, Msg: "invalid length"}
		}
		if r.Contents()[0] == 0 {
			return "False", nil
		}
		return "True", nil
	case TypeInteger:
		if opts.DecimalIntegers {
			n, err := DecodeInteger(raw)
			if err != nil {
				return "", err
			}
			return n.String(), nil
		}
		return hexView(r.Contents()), nil
	case TypeBitString:
		value, unused, err := DecodeBitString(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Unused bits: %d : %s", unused, hexView(value)), nil
	case TypeNull:
		return "", nil
	case TypeObjectIdentifier:
		oid, err := DecodeOID(raw)
		if err != nil {
			return "", err
		}
		if name := OIDName(oid); name != "" {
			return fmt.Sprintf("%s (%s)", name, oid), nil
		}
		return oid, nil
	case TypeUTF8String, TypeBMPString, TypeUniversalString:
		return DecodeString(raw, Type(r.Tag()))
	case TypeNumericString, TypePrintableString, TypeTeletexString, TypeVideotexString, TypeIA5String, TypeVisibleString:
		return asciiView(r.Contents()), nil
	case TypeUTCTime, TypeGeneralizedTime:
		t, err := DecodeDateTime(raw)
		if err != nil {
			return "", err
		}
		return t.Format("2006-01-02 15:04:05 MST"), nil
	default:
		return hexView(r.Contents()), nil
	}
}

func hexView(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// asciiView keeps printable characters and replaces the rest with '.'.
func asciiView(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 32 && c <= 126 {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}
