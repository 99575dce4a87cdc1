package thales

import (
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// PIN TRANSLATION:
// A PIN block entered on a terminal is encrypted under the terminal PIN key.
// Before it leaves the acquirer it is re-encrypted under the zone PIN key shared
// with the next node. Both PIN blocks use ISO format 0 ("01" in host terms).

// PinBlockFormatISO0 is the ISO 9564 format 0 PIN block code.
const PinBlockFormatISO0 = "01"

// maxPINLength is sent with CA: PINs up to 12 digits are accepted.
const maxPINLength = "12"

const FieldDestPIN = "DestPIN"

var (
	translatePINTPKLayout = hsm.Layout{
		{Name: "PINLength", Width: 2},
		{Name: FieldDestPIN, Width: pinBlockWidth, Offset: 12},
	}
	translatePINLayout = hsm.Layout{
		{Name: FieldDestPIN, Width: pinBlockWidth},
	}
)

// PINTranslation groups the inputs of a PIN translation.
type PINTranslation struct {
	SourceKey      string // TPK for CA, terminal PIN key for D4.
	DestinationKey string // ZPK for CA, PIN encryption key for D4.
	PinBlock       string // 16 hex characters.
	PAN            string // Full PAN or its 12-digit account number.
}

func (p PINTranslation) params(name string) (src, dst, account string, err error) {
	if src, err = qualify(SchemeU, "source "+name, p.SourceKey); err != nil {
		return
	}
	if dst, err = qualify(SchemeU, "destination "+name, p.DestinationKey); err != nil {
		return
	}
	if err = hexField("PIN block", p.PinBlock, pinBlockWidth); err != nil {
		return
	}
	account, err = AccountNumber(p.PAN)
	return
}

// TranslatePINTPKToZPK creates a CA request re-encrypting a PIN block from a TPK to a ZPK.
func TranslatePINTPKToZPK(p PINTranslation) (*hsm.Request, error) {
	tpk, zpk, account, err := p.params("key")
	if err != nil {
		return nil, err
	}
	params := message(tpk, zpk, maxPINLength, p.PinBlock, PinBlockFormatISO0, PinBlockFormatISO0, account)
	return hsm.NewRequest(hsm.CMD_TRANSLATE_PIN_TPK_ZPK, params, translatePINTPKLayout), nil
}

// TranslatePIN creates a D4 request re-encrypting a PIN block between two terminal keys.
func TranslatePIN(p PINTranslation) (*hsm.Request, error) {
	ktp, kpe, account, err := p.params("key")
	if err != nil {
		return nil, err
	}
	params := message(ktp, kpe, p.PinBlock, account)
	return hsm.NewRequest(hsm.CMD_TRANSLATE_PIN, params, translatePINLayout), nil
}
