package rsakey

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/asn1"
	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// Certificate is the key pair produced by an RSA key generation: the clear
// public key and the private key encrypted under the LMK.
type Certificate struct {
	Public  *PublicKey
	Private *PrivateKey
}

// ParseKeyPair reads a DER public key followed by a length prefixed private key.
// The end of the public key is given by its own length header.
func ParseKeyPair(data []byte) (*Certificate, error) {
	r, err := asn1.NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("rsakey: public key: %w", err)
	}
	end := r.TagLength()

	pub, err := ParsePublicKey(data[:end])
	if err != nil {
		return nil, err
	}

	priv, n, err := ReadPrivateKey(data[end:])
	if err != nil {
		return nil, err
	}
	if rest := len(data) - end - n; rest != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after the private key", ErrPrivateKeyLength, rest)
	}

	return &Certificate{Public: pub, Private: priv}, nil
}

// Modulus is a shortcut to the public key modulus.
func (c *Certificate) Modulus() Modulus {
	return c.Public.Modulus()
}

// certificateReport is the printable view of a Certificate.
type certificateReport struct {
	Modulus    []byte `tlv:"02"`
	Exponent   []byte `tlv:"02" fmt:"int"`
	PrivateKey []byte
}

// Describe returns a report of the key pair. The private key is shown as the
// LMK encrypted bytes the HSM returned.
func (c *Certificate) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== RSA KEY PAIR (%d bits) ===", c.Public.Size())
	tlv.DescribeFields(&sb, "Key", certificateReport{
		Modulus:    c.Public.Modulus().Bytes(0),
		Exponent:   c.Public.Exponent().Bytes(0),
		PrivateKey: c.Private.Bytes(),
	})
	return sb.String()
}
