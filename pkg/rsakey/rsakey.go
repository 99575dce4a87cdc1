// Package rsakey models the RSA key material exchanged with the HSM: DER encoded
// public keys, LMK encrypted private keys and the pair returned by key generation.
//
// Public keys are decoded with the asn1 Reader and cross-checked against a BER-TLV
// struct mapping of the same bytes, so that a structure both decoders disagree on
// is rejected instead of silently producing a wrong modulus.
package rsakey

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRSAPublicKey is returned when the DER does not hold an RSAPublicKey.
	ErrNotRSAPublicKey = errors.New("rsakey: not an RSA public key")
	// ErrDecoderMismatch is returned when the ASN.1 and BER-TLV decodings disagree.
	ErrDecoderMismatch = errors.New("rsakey: decoders disagree")
	// ErrPrivateKeyLength is returned for a missing or invalid 4-digit length prefix.
	ErrPrivateKeyLength = errors.New("rsakey: invalid private key length")
)

// Encoding is the public key encoding rule understood by the HSM.
type Encoding string

const (
	// EncodingDERUnsigned encodes INTEGER contents as unsigned big-endian values.
	EncodingDERUnsigned Encoding = "01"
	// EncodingDERTwosComplement encodes INTEGER contents in two's complement.
	EncodingDERTwosComplement Encoding = "02"
)

func (e Encoding) String() string {
	switch e {
	case EncodingDERUnsigned:
		return "DER, unsigned"
	case EncodingDERTwosComplement:
		return "DER, two's complement"
	default:
		return fmt.Sprintf("Unknown Encoding (%s)", string(e))
	}
}
