package rsakey

import (
	"bytes"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/asn1"
	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// PUBLIC KEY FORMATS:
// The HSM returns and accepts PKCS#1 RSAPublicKey structures:
//
//	RSAPublicKey ::= SEQUENCE { modulus INTEGER, publicExponent INTEGER }
//
// Keys coming from other systems are often wrapped in an X.509 SubjectPublicKeyInfo:
//
//	SEQUENCE { SEQUENCE { OID rsaEncryption, NULL }, BIT STRING { RSAPublicKey } }
//
// ParsePublicKey accepts both and always exposes the inner RSAPublicKey.

// rsaPublicKeyTLV is the BER-TLV view of an RSAPublicKey.
type rsaPublicKeyTLV struct {
	Sequence struct {
		Integers [][]byte `tlv:"02"`
	} `tlv:"30"`
}

// PublicKey is an RSA public key as exchanged with the HSM.
type PublicKey struct {
	raw      []byte // RSAPublicKey DER
	payload  []byte // content of the outer SEQUENCE
	modulus  Modulus
	exponent Modulus
}

// ParsePublicKey decodes an RSAPublicKey or a SubjectPublicKeyInfo.
// Bytes after the first structure are ignored.
func ParsePublicKey(der []byte) (*PublicKey, error) {
	r, err := asn1.NewReader(der)
	if err != nil {
		return nil, fmt.Errorf("rsakey: %w", err)
	}
	if r.Tag() != 0x30 {
		return nil, fmt.Errorf("%w: root is %s", ErrNotRSAPublicKey, r.TagName())
	}

	if !r.MoveNext() {
		return nil, fmt.Errorf("%w: empty sequence", ErrNotRSAPublicKey)
	}

	// SubjectPublicKeyInfo: skip the algorithm and unwrap the BIT STRING.
	if r.Tag() == 0x30 {
		if !r.MoveNextCurrentLevel() || r.Tag() != byte(asn1.TypeBitString) {
			return nil, fmt.Errorf("%w: no subjectPublicKey BIT STRING", ErrNotRSAPublicKey)
		}
		return ParsePublicKey(r.Payload())
	}

	if r.Tag() != byte(asn1.TypeInteger) {
		return nil, fmt.Errorf("%w: modulus is %s", ErrNotRSAPublicKey, r.TagName())
	}
	modulus := r.Payload()

	if !r.MoveNextCurrentLevel() || r.Tag() != byte(asn1.TypeInteger) {
		return nil, fmt.Errorf("%w: missing public exponent", ErrNotRSAPublicKey)
	}
	exponent := r.Payload()

	r.Reset()
	key := &PublicKey{
		raw:      r.TagRawData(),
		payload:  r.Payload(),
		modulus:  NewModulus(modulus),
		exponent: NewModulus(exponent),
	}

	if err := key.crossCheck(modulus, exponent); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *PublicKey) crossCheck(modulus, exponent []byte) error {
	var shadow rsaPublicKeyTLV
	if err := tlv.Unmarshal(k.raw, &shadow); err != nil {
		return fmt.Errorf("%w: %v", ErrDecoderMismatch, err)
	}

	ints := shadow.Sequence.Integers
	if len(ints) != 2 || !bytes.Equal(ints[0], modulus) || !bytes.Equal(ints[1], exponent) {
		return fmt.Errorf("%w: BER-TLV found %d integers", ErrDecoderMismatch, len(ints))
	}
	return nil
}

// NewPublicKey encodes modulus and exponent as an RSAPublicKey.
func NewPublicKey(modulus *big.Int, exponent int) (*PublicKey, error) {
	if modulus.Sign() <= 0 || exponent <= 0 {
		return nil, fmt.Errorf("%w: modulus and exponent must be positive", ErrNotRSAPublicKey)
	}

	payload := append(asn1.EncodeInteger(modulus), asn1.EncodeInt64(int64(exponent))...)
	return ParsePublicKey(asn1.Encode(payload, 0x30))
}

// FromRSA converts a crypto/rsa public key.
func FromRSA(pub *rsa.PublicKey) (*PublicKey, error) {
	return NewPublicKey(pub.N, pub.E)
}

// Bytes returns the RSAPublicKey DER.
func (k *PublicKey) Bytes() []byte {
	return append([]byte(nil), k.raw...)
}

// Hex returns the RSAPublicKey DER as uppercase hex.
func (k *PublicKey) Hex() string {
	return strings.ToUpper(hex.EncodeToString(k.raw))
}

// Payload returns the content of the outer SEQUENCE.
func (k *PublicKey) Payload() []byte {
	return append([]byte(nil), k.payload...)
}

// Modulus returns the key modulus.
func (k *PublicKey) Modulus() Modulus {
	return k.modulus
}

// Exponent returns the public exponent.
func (k *PublicKey) Exponent() Modulus {
	return k.exponent
}

// Size is the modulus length in bits.
func (k *PublicKey) Size() int {
	return k.modulus.BitLen()
}

// RSA converts the key for use with crypto/rsa.
func (k *PublicKey) RSA() (*rsa.PublicKey, error) {
	e := k.exponent.Int()
	if !e.IsInt64() || e.Int64() > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("rsakey: exponent %s too large", e)
	}
	return &rsa.PublicKey{N: k.modulus.Int(), E: int(e.Int64())}, nil
}

// Equal reports whether both keys have the same encoding.
func (k *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && bytes.Equal(k.raw, other.raw)
}

func (k *PublicKey) String() string {
	return fmt.Sprintf("RSA-%d e=%s", k.Size(), k.exponent.Int())
}
