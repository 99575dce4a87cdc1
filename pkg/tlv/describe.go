package tlv

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// DescribeFields writes one report line per non-empty []byte field of s, plus one per
// unknown packet. Lines are joined without a trailing newline; a newline separates
// them from content already in sb.
//
// The `fmt` tag selects the rendering: "ascii" appends the printable text, "int"
// appends the decimal value, anything else is plain uppercase hex.
func DescribeFields(sb *strings.Builder, prefix string, s any) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()

	var lines []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		field := v.Field(i)

		switch {
		case isBytes(f.Type):
			if field.Len() == 0 {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("tlv"); tag != "" {
				name = fmt.Sprintf("%s (%s)", name, tag)
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, render(field.Bytes(), f.Tag.Get("fmt"))))
		case f.Type == reflect.TypeOf([]bertlv.TLV(nil)):
			for _, p := range field.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, strings.ToUpper(p.Tag), p.Value))
			}
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func render(data []byte, format string) string {
	raw := strings.ToUpper(hex.EncodeToString(data))
	switch format {
	case "ascii":
		return fmt.Sprintf("%s (%q)", raw, MakeSafeASCII(data))
	case "int":
		return fmt.Sprintf("%s (Dec: %s)", raw, new(big.Int).SetBytes(data))
	default:
		return raw
	}
}

// MakeSafeASCII replaces every non printable byte with a dot.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
