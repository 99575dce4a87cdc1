// Package thales builds the host commands of a Thales payShield compatible HSM
// and decodes their responses.
//
// Every builder returns an *hsm.Request carrying the command message and the
// field layout of a successful response. Requests can be sent through any
// Doer, typically an *hsm.Session or an *hsm.Pool, or through a Client which
// adds typed accessors on top of the raw fields.
//
// # Keys
//
// Keys encrypted under the LMK are 32 hex characters behind a one letter
// scheme tag ("U" for double length variant keys). Builders accept a key with
// or without its tag: a bare hex key gets the scheme the command expects.
//
// # Catalog
//
//	A0  generate key (ZMK, ZPK, TMK, TPK, TAK)
//	A2  generate and print a key component
//	A4  form a key from components
//	A6  import a ZPK encrypted under a ZMK
//	C2  generate a MAC         C4  verify a MAC
//	C6  generate a random number
//	C8  generate an acquirer master KEK
//	CA  translate a PIN from TPK to ZPK
//	CO  generate the initial TMKs
//	D4  translate a PIN
//	E0  KEKs validation request   E2  KEKr validation response
//	EI  generate an RSA key pair  EO  MAC an RSA public key
//	H2  public key verification code
//	H8  encrypt the KCA under the KTI
//	HO  decrypt a pin pad public key
//	NE  print key components      OE  generate and print a TMK
//	OI  generate a set of zone keys   OK  translate a set of zone keys
//	PA  load the print formatting
//	PK  generate a pin pad acquirer security number
//	TA  print a TMK
package thales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// ErrInvalidParameter is returned by builders for inputs the HSM would reject.
var ErrInvalidParameter = errors.New("thales: invalid parameter")

// Doer sends a command and parses its response.
type Doer interface {
	Do(ctx context.Context, cmd hsm.Command) (*hsm.Response, error)
}

var (
	_ Doer = (*hsm.Session)(nil)
	_ Doer = (*hsm.Pool)(nil)
)

// KeyType is the 3-digit LMK key type code.
type KeyType string

const (
	KeyTypeZMK KeyType = "000"
	KeyTypeZPK KeyType = "001"
	KeyTypeTMK KeyType = "002" // Also used for TPK and PVK.
	KeyTypeTAK KeyType = "003"
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeZMK:
		return "ZMK"
	case KeyTypeZPK:
		return "ZPK"
	case KeyTypeTMK:
		return "TMK/TPK/PVK"
	case KeyTypeTAK:
		return "TAK"
	default:
		return fmt.Sprintf("Unknown Key Type (%s)", string(k))
	}
}

// Validate checks the code is three decimal digits.
func (k KeyType) Validate() error {
	if len(k) != 3 || !isDigits(string(k)) {
		return fmt.Errorf("%w: key type %q", ErrInvalidParameter, string(k))
	}
	return nil
}

// Key scheme tags.
const (
	SchemeU = 'U' // Double length, variant.
	SchemeX = 'X' // Double length, ANSI X9.17.
	SchemeH = 'H' // Double length, AS2805 zone keys.
)

// Field widths shared by most layouts.
const (
	keyWidth      = 33 // Scheme tag + 32 hex.
	checkWidth    = 6
	pinBlockWidth = 16
)

// qualify returns key behind the given scheme tag. A key already carrying a
// scheme tag keeps it.
func qualify(scheme byte, name, key string) (string, error) {
	hexPart := key
	if key != "" && strings.IndexByte("ZUTXYSHR", key[0]) >= 0 {
		scheme = key[0]
		hexPart = key[1:]
	}

	switch len(hexPart) {
	case 16, 32, 48:
	default:
		return "", fmt.Errorf("%w: %s has %d hex characters", ErrInvalidParameter, name, len(hexPart))
	}
	if !isHex(hexPart) {
		return "", fmt.Errorf("%w: %s is not hex", ErrInvalidParameter, name)
	}
	if len(hexPart) == 16 && key == hexPart {
		// Single length keys carry no tag.
		return hexPart, nil
	}
	return string(scheme) + hexPart, nil
}

// field rejects empty values and the ';' delimiter.
func field(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidParameter, name)
	}
	for i := 0; i < len(value); i++ {
		if c := value[i]; c == ';' || c < 0x20 || c > 0x7E {
			return fmt.Errorf("%w: %s contains %q", ErrInvalidParameter, name, c)
		}
	}
	return nil
}

func hexField(name, value string, width int) error {
	if len(value) != width || !isHex(value) {
		return fmt.Errorf("%w: %s must be %d hex characters", ErrInvalidParameter, name, width)
	}
	return nil
}

// AccountNumber returns the 12 right-most digits of pan, check digit excluded.
// A 12-digit input is returned as-is.
func AccountNumber(pan string) (string, error) {
	if !isDigits(pan) || len(pan) < 12 {
		return "", fmt.Errorf("%w: account number %q", ErrInvalidParameter, pan)
	}
	if len(pan) == 12 {
		return pan, nil
	}
	return pan[len(pan)-13 : len(pan)-1], nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// message concatenates parts into a request parameter block.
func message(parts ...string) []byte {
	return []byte(strings.Join(parts, ""))
}
