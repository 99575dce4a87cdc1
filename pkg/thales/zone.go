package thales

import (
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// ZONE KEY EXCHANGE (AS2805):
// Two hosts share a pair of KEKs: KEKs protects what this node sends, KEKr what
// it receives. E0/E2 prove both sides hold the same KEKs before any session key
// is exchanged, OI generates the sending set of zone keys and OK imports the set
// received from the other node.

// Field names of the zone key responses.
const (
	FieldZPKLMK   = "ZPK(LMK)"
	FieldZPKZMK   = "ZPK(ZMK)"
	FieldZPKCheck = "ZPK Check Value"
	FieldZAKLMK   = "ZAK(LMK)"
	FieldZAKZMK   = "ZAK(ZMK)"
	FieldZAKCheck = "ZAK Check Value"
	FieldZEKLMK   = "ZEK(LMK)"
	FieldZEKZMK   = "ZEK(ZMK)"
	FieldZEKCheck = "ZEK Check Value"
	FieldKCVFlag  = "KCV Processing Flag"
)

var (
	setZoneKeysLayout = hsm.Layout{
		{Name: FieldZPKLMK, Width: keyWidth},
		{Name: FieldZPKZMK, Width: keyWidth},
		{Name: FieldZPKCheck, Width: checkWidth},
		{Name: FieldZAKLMK, Width: keyWidth},
		{Name: FieldZAKZMK, Width: keyWidth},
		{Name: FieldZAKCheck, Width: checkWidth},
		{Name: FieldZEKLMK, Width: keyWidth},
		{Name: FieldZEKZMK, Width: keyWidth},
		{Name: FieldZEKCheck, Width: checkWidth},
	}
	translateZoneKeysLayout = hsm.Layout{
		{Name: FieldKCVFlag, Width: 1},
		{Name: FieldZPKLMK, Width: keyWidth},
		{Name: FieldZPKCheck, Width: checkWidth},
		{Name: FieldZAKLMK, Width: keyWidth},
		{Name: FieldZAKCheck, Width: checkWidth},
		{Name: FieldZEKLMK, Width: keyWidth},
		{Name: FieldZEKCheck, Width: checkWidth},
	}
	kekValidationRequestLayout = hsm.Layout{
		{Name: "KRs", Width: 16},
		{Name: "KRr", Width: 16},
	}
	kekValidationResponseLayout = hsm.Layout{
		{Name: "KRr", Width: hsm.Rest},
	}
)

// placeholderZEK stands for a ZEK that is not being translated.
var placeholderZEK = "H" + strings.Repeat("1", 32)

// SetZoneKeys creates an OI request generating a ZPK, a ZAK and a ZEK under keks.
func SetZoneKeys(keks string) (*hsm.Request, error) {
	keks, err := qualify(SchemeU, "KEKs", keks)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_SET_ZONE_KEYS, message(keks, ";HU1;1"), setZoneKeysLayout), nil
}

// TranslateZoneKeys creates an OK request importing zone keys received under kekr.
// An empty zek is replaced by a placeholder flagged as absent.
func TranslateZoneKeys(kekr, zpk, zak, zek string) (*hsm.Request, error) {
	kekr, err := qualify(SchemeU, "KEKr", kekr)
	if err != nil {
		return nil, err
	}
	if zpk, err = qualify(SchemeH, "ZPK", zpk); err != nil {
		return nil, err
	}
	if zak, err = qualify(SchemeH, "ZAK", zak); err != nil {
		return nil, err
	}

	zekFlag := "0"
	if zek == "" {
		zek = placeholderZEK
	} else {
		if zek, err = qualify(SchemeH, "ZEK", zek); err != nil {
			return nil, err
		}
		zekFlag = "1"
	}

	params := message(kekr, "2", "1", zpk, "1", zak, zekFlag, zek, ";HU1")
	return hsm.NewRequest(hsm.CMD_TRANSLATE_ZONE_KEYS, params, translateZoneKeysLayout), nil
}

// KEKValidationRequest creates an E0 request returning the random KRs and its inverse KRr.
func KEKValidationRequest(keks string) (*hsm.Request, error) {
	keks, err := qualify(SchemeU, "KEKs", keks)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_KEK_VALIDATION_REQUEST, message(keks), kekValidationRequestLayout), nil
}

// KEKValidationResponse creates an E2 request answering the peer's KRs with KRr.
func KEKValidationResponse(kekr, krs string) (*hsm.Request, error) {
	kekr, err := qualify(SchemeU, "KEKr", kekr)
	if err != nil {
		return nil, err
	}
	if err := hexField("KRs", krs, 16); err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_KEK_VALIDATION_RESPONSE, message(kekr, krs), kekValidationResponseLayout), nil
}
