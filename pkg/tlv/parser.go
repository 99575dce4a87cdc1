// Package tlv maps BER-TLV encoded structures onto Go structs using `tlv` struct tags.
//
// It is the second decoder used on HSM key material: the asn1 package walks the DER
// with its own reader, and callers map the same bytes here (backed by moov-io/bertlv)
// to confirm both views agree. The package also carries small helpers shared by
// tests and reports (Hex, MakeSafeASCII, DescribeFields).
//
// A field is bound by its tag in hex, for example `tlv:"30"` for a SEQUENCE or
// `tlv:"02"` for an INTEGER. Supported field kinds:
//   - []byte receives the value (re-encoded children for constructed tags)
//   - string receives the value as lowercase hex
//   - a struct or pointer to struct is filled from the children
//   - a slice of any of the above collects every occurrence of the tag
//
// A field tagged `tlv:",unknown"` of type []bertlv.TLV collects the packets no other field claimed.
package tlv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// ErrInvalidTarget is returned when the target is not a non-nil pointer to a struct.
var ErrInvalidTarget = errors.New("tlv: target must be a non-nil pointer to a struct")

const unknownTag = ",unknown"

// Unmarshal decodes data and maps it into target.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("tlv: decode: %w", err)
	}
	return UnmarshalPackets(packets, target)
}

// UnmarshalPackets maps already decoded packets into target.
func UnmarshalPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	v = v.Elem()
	t := v.Type()

	claimed := make([]bool, len(packets))
	unknown := -1

	for i := 0; i < t.NumField(); i++ {
		opt := t.Field(i).Tag.Get("tlv")
		if opt == unknownTag {
			unknown = i
			continue
		}
		if opt == "" {
			continue
		}

		tag := strings.ToUpper(strings.Split(opt, ",")[0])
		for j, p := range packets {
			if !strings.EqualFold(p.Tag, tag) {
				continue
			}
			if err := assign(p, v.Field(i)); err != nil {
				return fmt.Errorf("tlv: field %s (%s): %w", t.Field(i).Name, tag, err)
			}
			claimed[j] = true
		}
	}

	if unknown < 0 {
		return nil
	}
	var rest []bertlv.TLV
	for j, p := range packets {
		if !claimed[j] {
			rest = append(rest, p)
		}
	}
	if len(rest) > 0 {
		v.Field(unknown).Set(reflect.ValueOf(rest))
	}
	return nil
}

// assign stores p into field, appending when field collects repeated tags.
func assign(p bertlv.TLV, field reflect.Value) error {
	if field.Kind() == reflect.Slice && !isBytes(field.Type()) {
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := store(p, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil
	}
	return store(p, field)
}

func store(p bertlv.TLV, field reflect.Value) error {
	switch {
	case isBytes(field.Type()):
		value, err := valueOf(p)
		if err != nil {
			return err
		}
		field.SetBytes(value)
	case field.Kind() == reflect.String:
		field.SetString(hex.EncodeToString(p.Value))
	case field.Kind() == reflect.Struct:
		return fill(p, field.Addr())
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return fill(p, field)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func fill(p bertlv.TLV, target reflect.Value) error {
	if len(p.TLVs) > 0 {
		return UnmarshalPackets(p.TLVs, target.Interface())
	}
	return Unmarshal(p.Value, target.Interface())
}

// valueOf returns the content octets of p. bertlv splits constructed tags into
// children, which are re-encoded here.
func valueOf(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) == 0 {
		return p.Value, nil
	}
	return bertlv.Encode(p.TLVs)
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
