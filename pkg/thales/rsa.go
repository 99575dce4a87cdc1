package thales

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/rsakey"
)

// RSA TERMINAL INITIALISATION (AS2805.6.5.3):
// A pin pad proves its identity with an RSA key certified by its manufacturer.
// The acquirer checks that certificate (HO), then sends the pin pad its initial
// keys encrypted under the pin pad public key (H8). The acquirer's own key pair
// is generated with EI and protected in storage by a MAC (EO) and a public key
// verification code (H2).
//
// Unlike the other commands, these mix ASCII fields with binary DER structures.

// RSAKeyUsage is the EI key type.
type RSAKeyUsage string

const (
	RSASignatureOnly     RSAKeyUsage = "0"
	RSAKeyManagementOnly RSAKeyUsage = "1"
	RSASignatureAndKey   RSAKeyUsage = "2"
	RSAICCKey            RSAKeyUsage = "3"
	RSASSL               RSAKeyUsage = "4"
)

// Bounds of the EI modulus length.
const (
	MinRSABits = 320
	MaxRSABits = 4096
)

const (
	FieldKeyPair   = "KeyPair"
	FieldPublicKey = "PublicKey"
	FieldPVC       = "PVC"
	FieldPPPK      = "PPPK"
)

var (
	generateRSAKeyPairLayout = hsm.Layout{
		{Name: FieldKeyPair, Width: hsm.Rest},
	}
	macPublicKeyLayout = hsm.Layout{
		{Name: FieldMAC, Width: 4},
		{Name: FieldPublicKey, Width: hsm.Rest},
	}
	publicKeyVerificationLayout = hsm.Layout{
		{Name: FieldPVC, Width: hsm.Rest},
	}
	pinPadKeyLayout = hsm.Layout{
		{Name: FieldPPPK, Width: hsm.Rest},
	}
	encryptKCALayout = hsm.Layout{
		{Name: "KCA(KTI)", Width: keyWidth},
		{Name: "KCA(LMK)", Width: keyWidth},
		{Name: "DTS", Width: 10},
		{Name: "PPSN", Width: 16},
	}
	initialTMKsLayout = hsm.Layout{
		{Name: "TMK1(LMK)", Width: keyWidth},
		{Name: "TMK1(KIA)", Width: keyWidth},
		{Name: "TMK1 CHECK", Width: checkWidth},
		{Name: "TMK2(LMK)", Width: keyWidth, Offset: 88},
		{Name: "TMK2(KIA)", Width: keyWidth},
		{Name: "TMK2 CHECK", Width: checkWidth},
		{Name: "PPASN(LMK)", Width: 16},
		{Name: "PPASN(KIA)", Width: 16},
	}
	acquirerMasterKEKLayout = hsm.Layout{
		{Name: "KIA(LMK)", Width: hsm.Rest},
	}
)

// GenerateRSAKeyPair creates an EI request. An exponent of 0 lets the HSM use
// its default of 65537.
func GenerateRSAKeyPair(usage RSAKeyUsage, bits, exponent int, enc rsakey.Encoding) (*hsm.Request, error) {
	if bits < MinRSABits || bits > MaxRSABits {
		return nil, fmt.Errorf("%w: modulus of %d bits", ErrInvalidParameter, bits)
	}
	if len(usage) != 1 || usage[0] < '0' || usage[0] > '4' {
		return nil, fmt.Errorf("%w: key usage %q", ErrInvalidParameter, string(usage))
	}
	if err := validEncoding(enc); err != nil {
		return nil, err
	}

	params := message(string(usage), fmt.Sprintf("%04d", bits), string(enc))
	switch {
	case exponent < 0 || exponent%2 == 0 && exponent != 0:
		return nil, fmt.Errorf("%w: public exponent %d", ErrInvalidParameter, exponent)
	case exponent > 0:
		e := big.NewInt(int64(exponent))
		params = append(params, fmt.Sprintf("%04d", e.BitLen())...)
		params = append(params, e.Bytes()...)
	}
	return hsm.NewRequest(hsm.CMD_GENERATE_RSA_KEY_PAIR, params, generateRSAKeyPairLayout), nil
}

// ParseKeyPair extracts the key pair of an EI response.
func ParseKeyPair(resp *hsm.Response) (*rsakey.Certificate, error) {
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return rsakey.ParseKeyPair([]byte(resp.Get(FieldKeyPair)))
}

// MACPublicKey creates an EO request computing the MAC protecting pub in storage.
func MACPublicKey(pub *rsakey.PublicKey) *hsm.Request {
	params := append(message(string(rsakey.EncodingDERUnsigned)), pub.Bytes()...)
	return hsm.NewRequest(hsm.CMD_MAC_PUBLIC_KEY, params, macPublicKeyLayout)
}

// PublicKeyVerificationCode creates an H2 request.
func PublicKeyVerificationCode(pub *rsakey.PublicKey, enc rsakey.Encoding) (*hsm.Request, error) {
	if err := validEncoding(enc); err != nil {
		return nil, err
	}
	params := append(message(string(enc)), pub.Bytes()...)
	return hsm.NewRequest(hsm.CMD_PUBLIC_KEY_VERIFICATION, params, publicKeyVerificationLayout), nil
}

// DecryptPinPadPublicKey creates an HO request recovering the pin pad public key
// from the manufacturer's signature. mac is the EO MAC of manufacturer.
func DecryptPinPadPublicKey(mac []byte, manufacturer *rsakey.PublicKey, signed []byte, enc rsakey.Encoding) (*hsm.Request, error) {
	if len(mac) != 4 {
		return nil, fmt.Errorf("%w: MAC of %d bytes", ErrInvalidParameter, len(mac))
	}
	if len(signed) == 0 || len(signed) > 9999 {
		return nil, fmt.Errorf("%w: signed key of %d bytes", ErrInvalidParameter, len(signed))
	}
	if err := validEncoding(enc); err != nil {
		return nil, err
	}

	params := message(string(enc))
	params = append(params, mac...)
	params = append(params, manufacturer.Bytes()...)
	params = append(params, fmt.Sprintf("%04d", len(signed))...)
	params = append(params, signed...)
	return hsm.NewRequest(hsm.CMD_DECRYPT_PIN_PAD_KEY, params, pinPadKeyLayout), nil
}

// KCAExport groups the inputs of H8.
type KCAExport struct {
	Encoding     rsakey.Encoding
	MAC          []byte            // EO MAC of PinPadKey.
	PinPadKey    *rsakey.PublicKey // Recovered with HO.
	SecretKey    []byte            // Acquirer private key, from EI.
	DataBlock    []byte            // Signed data block sent by the pin pad.
	RandomNumber string            // Pin pad random number, hex.
}

// EncryptKCAUnderKTI creates an H8 request.
func EncryptKCAUnderKTI(in KCAExport) (*hsm.Request, error) {
	if len(in.MAC) != 4 {
		return nil, fmt.Errorf("%w: MAC of %d bytes", ErrInvalidParameter, len(in.MAC))
	}
	if in.PinPadKey == nil {
		return nil, fmt.Errorf("%w: pin pad public key is missing", ErrInvalidParameter)
	}
	if err := validEncoding(in.Encoding); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		b    []byte
	}{{"secret key", in.SecretKey}, {"data block", in.DataBlock}} {
		if len(f.b) == 0 || len(f.b) > 9999 {
			return nil, fmt.Errorf("%w: %s of %d bytes", ErrInvalidParameter, f.name, len(f.b))
		}
	}
	random, err := hex.DecodeString(in.RandomNumber)
	if err != nil || len(random) == 0 {
		return nil, fmt.Errorf("%w: random number %q", ErrInvalidParameter, in.RandomNumber)
	}

	params := message(string(in.Encoding))
	params = append(params, in.MAC...)
	params = append(params, in.PinPadKey.Bytes()...)
	params = append(params, fmt.Sprintf(";99%04d", len(in.SecretKey))...)
	params = append(params, in.SecretKey...)
	params = append(params, fmt.Sprintf(";%04d", len(in.DataBlock))...)
	params = append(params, in.DataBlock...)
	params = append(params, ';')
	params = append(params, random...)
	params = append(params, ";000"...)
	return hsm.NewRequest(hsm.CMD_ENCRYPT_KCA_UNDER_KTI, params, encryptKCALayout), nil
}

// InitialTMKs creates a CO request generating the two initial TMKs and the
// PPASN of a pin pad, under the LMK and under kia.
func InitialTMKs(kia string) (*hsm.Request, error) {
	kia, err := qualify(SchemeU, "KIA", kia)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_INITIAL_TMKS, message(kia), initialTMKsLayout), nil
}

// AcquirerMasterKEK creates a C8 request deriving the KIA from the KCA and the
// acquiring institution identification code.
func AcquirerMasterKEK(kca, aiic string) (*hsm.Request, error) {
	kca, err := qualify(SchemeU, "KCA", kca)
	if err != nil {
		return nil, err
	}
	if !isDigits(aiic) || len(aiic) > 11 {
		return nil, fmt.Errorf("%w: AIIC %q", ErrInvalidParameter, aiic)
	}
	return hsm.NewRequest(hsm.CMD_ACQUIRER_MASTER_KEK, message(kca, "1", aiic), acquirerMasterKEKLayout), nil
}

// PinPadAcquirerSecurityNumber creates a PK request.
func PinPadAcquirerSecurityNumber(kia string) (*hsm.Request, error) {
	kia, err := qualify(SchemeU, "KIA", kia)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_PIN_PAD_ACQUIRER_ID, message(kia), pinPadKeyLayout), nil
}

func validEncoding(enc rsakey.Encoding) error {
	switch enc {
	case rsakey.EncodingDERUnsigned, rsakey.EncodingDERTwosComplement:
		return nil
	}
	return fmt.Errorf("%w: public key encoding %q", ErrInvalidParameter, string(enc))
}
