package thales

import (
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// KEY GENERATION LOGIC:
// A0 generates a random key. In mode 0 the key is only returned under the LMK;
// in mode 1 it is also exported under a ZMK (';0') or a TMK (';1').
//
//	A0 <mode> <key type> <scheme> [; <flag> <exporting key> <export scheme>]
//
// A6 imports a key received from another zone, A4 combines clear components
// printed by A2/NE into a TMK.

// Layouts of the key management responses.
var (
	generateKeyLayout = hsm.Layout{
		{Name: "KEY", Width: keyWidth},
		{Name: "KEY_CHK", Width: checkWidth},
	}
	generateTMKLayout = hsm.Layout{
		{Name: "TMK", Width: keyWidth},
		{Name: "TMK_Check", Width: checkWidth},
	}
	generateTAKLayout = hsm.Layout{
		{Name: "TAK", Width: keyWidth},
		{Name: "TAK_Check", Width: checkWidth},
	}
	generateZPKLayout = hsm.Layout{
		{Name: "ZPK_LMK", Width: keyWidth},
		{Name: "ZPK_ZMK", Width: keyWidth},
		{Name: "ZPK_CHK", Width: checkWidth},
	}
	generateTPKLayout = hsm.Layout{
		{Name: "TPK_LMK", Width: keyWidth},
		{Name: "TPK_TMK", Width: keyWidth},
		{Name: "TPK_CHK", Width: hsm.Rest},
	}
	importZPKLayout = hsm.Layout{
		{Name: "ZPK_LMK", Width: keyWidth},
		{Name: "ZPK_CHK", Width: hsm.Rest},
	}
	tmkLayout = hsm.Layout{
		{Name: "TMK_LMK", Width: keyWidth},
		{Name: "TMK_CHK", Width: checkWidth},
	}
)

// GenerateKey creates an A0 mode 0 request: a key of type t under the LMK.
func GenerateKey(t KeyType) (*hsm.Request, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_GENERATE_KEY, message("0", string(t), "U"), generateKeyLayout), nil
}

// GenerateTMK creates an A0 request for a terminal master key.
func GenerateTMK() *hsm.Request {
	return hsm.NewRequest(hsm.CMD_GENERATE_KEY, message("0", string(KeyTypeTMK), "U"), generateTMKLayout)
}

// GenerateTAK creates an A0 request for a terminal authentication key.
func GenerateTAK() *hsm.Request {
	return hsm.NewRequest(hsm.CMD_GENERATE_KEY, message("0", string(KeyTypeTAK), "U"), generateTAKLayout)
}

// GenerateZPK creates an A0 mode 1 request: a ZPK returned under the LMK and under zmk.
func GenerateZPK(zmk string) (*hsm.Request, error) {
	zmk, err := qualify(SchemeU, "ZMK", zmk)
	if err != nil {
		return nil, err
	}
	params := message("1", string(KeyTypeZPK), "U", ";0", zmk, "U")
	return hsm.NewRequest(hsm.CMD_GENERATE_KEY, params, generateZPKLayout), nil
}

// GenerateTPK creates an A0 mode 1 request: a TPK returned under the LMK and under tmk.
func GenerateTPK(tmk string) (*hsm.Request, error) {
	tmk, err := qualify(SchemeU, "TMK", tmk)
	if err != nil {
		return nil, err
	}
	params := message("1", string(KeyTypeTMK), "U", ";1", tmk, "X")
	return hsm.NewRequest(hsm.CMD_GENERATE_KEY, params, generateTPKLayout), nil
}

// ImportZPK creates an A6 request translating a ZPK from zmk to the LMK.
func ImportZPK(zmk, zpk string) (*hsm.Request, error) {
	zmk, err := qualify(SchemeU, "ZMK", zmk)
	if err != nil {
		return nil, err
	}
	zpk, err = qualify(SchemeX, "ZPK", zpk)
	if err != nil {
		return nil, err
	}
	params := message(string(KeyTypeZPK), zmk, zpk, "U")
	return hsm.NewRequest(hsm.CMD_IMPORT_KEY, params, importZPKLayout), nil
}

// FormKeyFromComponents creates an A4 request combining two TMK components.
func FormKeyFromComponents(component1, component2 string) (*hsm.Request, error) {
	c1, err := qualify(SchemeU, "component 1", component1)
	if err != nil {
		return nil, err
	}
	c2, err := qualify(SchemeU, "component 2", component2)
	if err != nil {
		return nil, err
	}
	params := message("2", string(KeyTypeTMK), "U", c1, c2)
	return hsm.NewRequest(hsm.CMD_FORM_KEY_COMPONENTS, params, tmkLayout), nil
}
