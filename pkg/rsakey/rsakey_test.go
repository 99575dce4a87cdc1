package rsakey

import (
	"bytes"
	"crypto/rsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/hsm-gateway/pkg/asn1"
	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// 1024-bit key as returned by the HSM with encoding 01 (unsigned INTEGER contents).
var hsmPublicKey = tlv.Hex(
	"30 81 88",
	"02 81 80",
	"A7A8F2655F4715035E0059CFAF223EC13214B17C3C8402B8EB23BBDD6F8F284E",
	"5618516812FADDDED7E129C318435DDF822813CC53269C516C7F3BDBE905FC3B",
	"AA4AC1C164A5D4B10A29E80FB5D48FAD1B430AA8DE0E08AA0C24700B6A84513C",
	"C67A9A284456C32B5196A6070707C99E114A42D385F31CE4D3A22926E366C07D",
	"02 03 010001",
)

func TestParsePublicKey(t *testing.T) {
	key, err := ParsePublicKey(hsmPublicKey)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}

	if got := key.Size(); got != 1024 {
		t.Errorf("Size() = %d, want 1024", got)
	}
	if got := key.Exponent().Int().Int64(); got != 65537 {
		t.Errorf("Exponent() = %d, want 65537", got)
	}
	if got := key.Exponent().Hex(6); got != "010001" {
		t.Errorf("Exponent().Hex(6) = %s, want 010001", got)
	}
	if !strings.HasPrefix(key.Modulus().Hex(0), "A7A8F2655F47") {
		t.Errorf("Modulus() = %s", key.Modulus())
	}
	if !bytes.Equal(key.Bytes(), hsmPublicKey) {
		t.Error("Bytes() should return the DER unchanged")
	}
	if got, want := len(key.Payload()), 0x88; got != want {
		t.Errorf("len(Payload()) = %d, want %d", got, want)
	}
	if got := key.String(); got != "RSA-1024 e=65537" {
		t.Errorf("String() = %q", got)
	}

	pub, err := key.RSA()
	if err != nil {
		t.Fatalf("RSA() error = %v", err)
	}
	if pub.E != 65537 || pub.N.BitLen() != 1024 {
		t.Errorf("RSA() = e %d, n %d bits", pub.E, pub.N.BitLen())
	}
}

func TestParsePublicKey_TrailingBytes(t *testing.T) {
	data := append(append([]byte(nil), hsmPublicKey...), "0512"...)

	key, err := ParsePublicKey(data)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if !bytes.Equal(key.Bytes(), hsmPublicKey) {
		t.Error("trailing bytes must not be part of the key")
	}
}

func TestParsePublicKey_SubjectPublicKeyInfo(t *testing.T) {
	oid, err := asn1.EncodeOID("1.2.840.113549.1.1.1")
	if err != nil {
		t.Fatal(err)
	}
	algorithm := asn1.Encode(append(oid, asn1.EncodeNull()...), 0x30)
	bitString, err := asn1.EncodeBitString(hsmPublicKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	spki := asn1.Encode(append(algorithm, bitString...), 0x30)

	key, err := ParsePublicKey(spki)
	if err != nil {
		t.Fatalf("ParsePublicKey(SPKI) error = %v", err)
	}
	if !bytes.Equal(key.Bytes(), hsmPublicKey) {
		t.Errorf("SPKI should unwrap to the RSAPublicKey, got %X", key.Bytes())
	}
}

func TestParsePublicKey_Errors(t *testing.T) {
	tests := []struct {
		name    string
		der     []byte
		wantErr error
	}{
		{"Not a sequence", tlv.Hex("02 01 03"), ErrNotRSAPublicKey},
		{"Single integer", tlv.Hex("30 03 02 01 03"), ErrNotRSAPublicKey},
		{"Octet string modulus", tlv.Hex("30 06 04 01 03 02 01 03"), ErrNotRSAPublicKey},
		{"Truncated", tlv.Hex("30 81 88 02 81 80 A7"), asn1.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.der)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePublicKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewPublicKey(t *testing.T) {
	n := new(big.Int).SetBytes(tlv.Hex("C3 5A 01 77 9B"))

	key, err := NewPublicKey(n, 3)
	if err != nil {
		t.Fatalf("NewPublicKey() error = %v", err)
	}

	// High bit set: DER adds a leading zero octet.
	want := tlv.Hex("30 0B 02 06 00 C3 5A 01 77 9B 02 01 03")
	if diff := cmp.Diff(want, key.Bytes()); diff != "" {
		t.Errorf("NewPublicKey() mismatch (-want +got):\n%s", diff)
	}
	if key.Modulus().Int().Cmp(n) != 0 {
		t.Errorf("Modulus() = %s, want %s", key.Modulus().Int(), n)
	}

	again, err := FromRSA(&rsa.PublicKey{N: n, E: 3})
	if err != nil {
		t.Fatalf("FromRSA() error = %v", err)
	}
	if !again.Equal(key) {
		t.Error("FromRSA() should encode like NewPublicKey()")
	}

	if _, err := NewPublicKey(big.NewInt(0), 3); !errors.Is(err, ErrNotRSAPublicKey) {
		t.Errorf("zero modulus error = %v", err)
	}
}

func TestModulus(t *testing.T) {
	m := NewModulus(tlv.Hex("00 00 01 00 01"))

	if got := m.Hex(0); got != "010001" {
		t.Errorf("Hex(0) = %s, want 010001", got)
	}
	if got := m.Hex(8); got != "00010001" {
		t.Errorf("Hex(8) = %s, want 00010001", got)
	}
	if diff := cmp.Diff(tlv.Hex("00 01 00 01"), m.Bytes(4)); diff != "" {
		t.Errorf("Bytes(4) mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(tlv.Hex("01 00 01"), m.Bytes(1)); diff != "" {
		t.Errorf("Bytes(1) mismatch:\n%s", diff)
	}
	if got := m.BitLen(); got != 17 {
		t.Errorf("BitLen() = %d, want 17", got)
	}

	parsed, err := ParseModulus("10001")
	if err != nil {
		t.Fatalf("ParseModulus() error = %v", err)
	}
	if parsed.Int().Int64() != 65537 {
		t.Errorf("ParseModulus(10001) = %s", parsed.Int())
	}
	if _, err := ParseModulus("XY"); err == nil {
		t.Error("ParseModulus(XY) should fail")
	}

	if got := NewModulus([]byte{0}).Hex(0); got != "00" {
		t.Errorf("zero modulus Hex = %s, want 00", got)
	}
}

func TestPrivateKey(t *testing.T) {
	data := []byte("0005\x01\x02\x03\x04\x05REST")

	key, n, err := ReadPrivateKey(data)
	if err != nil {
		t.Fatalf("ReadPrivateKey() error = %v", err)
	}
	if n != 9 {
		t.Errorf("consumed = %d, want 9", n)
	}
	if key.Len() != 5 {
		t.Errorf("Len() = %d, want 5", key.Len())
	}
	if got := key.Hex(); got != "0102030405" {
		t.Errorf("Hex() = %s", got)
	}
	if got := string(key.WithLength()); got != "0005\x01\x02\x03\x04\x05" {
		t.Errorf("WithLength() = %q", got)
	}
	if got := key.HexWithLength(); got != "303030350102030405" {
		t.Errorf("HexWithLength() = %s", got)
	}
}

func TestReadPrivateKey_Errors(t *testing.T) {
	for _, data := range []string{"", "00", "00X1abc", "0010abc"} {
		if _, _, err := ReadPrivateKey([]byte(data)); !errors.Is(err, ErrPrivateKeyLength) {
			t.Errorf("ReadPrivateKey(%q) error = %v, want ErrPrivateKeyLength", data, err)
		}
	}
}

func TestParseKeyPair(t *testing.T) {
	private := bytes.Repeat([]byte{0xAB}, 12)
	data := append(append(append([]byte(nil), hsmPublicKey...), "0012"...), private...)

	cert, err := ParseKeyPair(data)
	if err != nil {
		t.Fatalf("ParseKeyPair() error = %v", err)
	}
	if !bytes.Equal(cert.Public.Bytes(), hsmPublicKey) {
		t.Error("public key mismatch")
	}
	if !bytes.Equal(cert.Private.Bytes(), private) {
		t.Errorf("private key = %X", cert.Private.Bytes())
	}
	if cert.Modulus().BitLen() != 1024 {
		t.Errorf("Modulus().BitLen() = %d", cert.Modulus().BitLen())
	}

	if _, err := ParseKeyPair(append(data, 'X')); !errors.Is(err, ErrPrivateKeyLength) {
		t.Errorf("trailing byte error = %v, want ErrPrivateKeyLength", err)
	}
}

func TestCertificate_Describe(t *testing.T) {
	pub, err := NewPublicKey(new(big.Int).SetBytes(tlv.Hex("C3 5A 01 77 9B")), 3)
	if err != nil {
		t.Fatalf("NewPublicKey() error = %v", err)
	}
	cert := &Certificate{Public: pub, Private: NewPrivateKey(tlv.Hex("CAFE"))}

	want := strings.Join([]string{
		"=== RSA KEY PAIR (40 bits) ===",
		"    - Key.Modulus (02): C35A01779B",
		"    - Key.Exponent (02): 03 (Dec: 3)",
		"    - Key.PrivateKey: CAFE",
	}, "\n")
	if diff := cmp.Diff(want, cert.Describe()); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoding_String(t *testing.T) {
	if got := EncodingDERUnsigned.String(); got != "DER, unsigned" {
		t.Errorf("String() = %q", got)
	}
	if got := Encoding("09").String(); got != "Unknown Encoding (09)" {
		t.Errorf("String() = %q", got)
	}
}
