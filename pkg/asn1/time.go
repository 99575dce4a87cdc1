package asn1

import (
	"fmt"
	"time"
)

var (
	utcTimeLayouts         = []string{"060102150405Z0700", "0601021504Z0700"}
	generalizedTimeLayouts = []string{"20060102150405Z0700", "200601021504Z0700", "20060102150405"}
)

// EncodeUTCTime encodes t as "YYMMDDHHMMSSZ". Only years 1950 to 2049 can be represented.
func EncodeUTCTime(t time.Time) ([]byte, error) {
	t = t.UTC()
	if t.Year() < 1950 || t.Year() > 2049 {
		return nil, &ValueError{Type: TypeUTCTime, Msg: fmt.Sprintf("year %d out of range", t.Year())}
	}
	return Encode([]byte(t.Format("060102150405")+"Z"), byte(TypeUTCTime)), nil
}

// DecodeUTCTime decodes a UTCTime. Two digit years below 50 map to 20YY, others to 19YY.
func DecodeUTCTime(raw []byte) (time.Time, error) {
	b, err := contents(raw, TypeUTCTime)
	if err != nil {
		return time.Time{}, err
	}
	t, err := parseTime(string(b), utcTimeLayouts, TypeUTCTime)
	if err != nil {
		return time.Time{}, err
	}
	// time.Parse splits two digit years at 69
	if t.Year() >= 2050 {
		t = t.AddDate(-100, 0, 0)
	}
	return t, nil
}

// EncodeGeneralizedTime encodes t as "YYYYMMDDHHMMSS[.fff]Z".
func EncodeGeneralizedTime(t time.Time) []byte {
	return Encode([]byte(t.UTC().Format("20060102150405.999")+"Z"), byte(TypeGeneralizedTime))
}

// DecodeGeneralizedTime decodes a GeneralizedTime. Values without a zone are read as UTC.
func DecodeGeneralizedTime(raw []byte) (time.Time, error) {
	b, err := contents(raw, TypeGeneralizedTime)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(string(b), generalizedTimeLayouts, TypeGeneralizedTime)
}

// EncodeDateTime picks UTCTime for years 1950 to 2049 and GeneralizedTime otherwise.
func EncodeDateTime(t time.Time) []byte {
	if raw, err := EncodeUTCTime(t); err == nil {
		return raw
	}
	return EncodeGeneralizedTime(t)
}

// DecodeDateTime decodes either a UTCTime or a GeneralizedTime depending on the tag.
func DecodeDateTime(raw []byte) (time.Time, error) {
	if len(raw) < 2 {
		return time.Time{}, ErrInvalidData
	}
	switch Type(raw[0]) {
	case TypeUTCTime:
		return DecodeUTCTime(raw)
	case TypeGeneralizedTime:
		return DecodeGeneralizedTime(raw)
	default:
		return time.Time{}, &ValueError{Type: Type(raw[0]), Msg: "not a time type"}
	}
}

func parseTime(s string, layouts []string, t Type) (time.Time, error) {
	for _, layout := range layouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v.UTC(), nil
		}
	}
	return time.Time{}, &ValueError{Type: t, Msg: fmt.Sprintf("invalid value %q", s)}
}
