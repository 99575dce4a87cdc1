package hsm

import "fmt"

// CommandCode is the 2-character code opening every request message.
type CommandCode string

// Host commands used by the gateway.
const (
	CMD_GENERATE_KEY            CommandCode = "A0"
	CMD_GENERATE_PRINT_KEY      CommandCode = "A2"
	CMD_FORM_KEY_COMPONENTS     CommandCode = "A4"
	CMD_IMPORT_KEY              CommandCode = "A6"
	CMD_GENERATE_MAC            CommandCode = "C2"
	CMD_VERIFY_MAC              CommandCode = "C4"
	CMD_GENERATE_RANDOM         CommandCode = "C6"
	CMD_ACQUIRER_MASTER_KEK     CommandCode = "C8"
	CMD_TRANSLATE_PIN_TPK_ZPK   CommandCode = "CA"
	CMD_INITIAL_TMKS            CommandCode = "CO"
	CMD_TRANSLATE_PIN           CommandCode = "D4"
	CMD_KEK_VALIDATION_REQUEST  CommandCode = "E0"
	CMD_KEK_VALIDATION_RESPONSE CommandCode = "E2"
	CMD_GENERATE_RSA_KEY_PAIR   CommandCode = "EI"
	CMD_MAC_PUBLIC_KEY          CommandCode = "EO"
	CMD_PUBLIC_KEY_VERIFICATION CommandCode = "H2"
	CMD_ENCRYPT_KCA_UNDER_KTI   CommandCode = "H8"
	CMD_DECRYPT_PIN_PAD_KEY     CommandCode = "HO"
	CMD_PRINT_COMPONENTS        CommandCode = "NE"
	CMD_PRINT_KEY               CommandCode = "OE"
	CMD_SET_ZONE_KEYS           CommandCode = "OI"
	CMD_TRANSLATE_ZONE_KEYS     CommandCode = "OK"
	CMD_LOAD_FORMATTING         CommandCode = "PA"
	CMD_PIN_PAD_ACQUIRER_ID     CommandCode = "PK"
	CMD_PRINT_TMK               CommandCode = "TA"
)

var commandNames = map[CommandCode]string{
	CMD_GENERATE_KEY:            "Generate Key",
	CMD_GENERATE_PRINT_KEY:      "Generate and Print Key Components",
	CMD_FORM_KEY_COMPONENTS:     "Form Key from Components",
	CMD_IMPORT_KEY:              "Import Key",
	CMD_GENERATE_MAC:            "Generate MAC",
	CMD_VERIFY_MAC:              "Verify MAC",
	CMD_GENERATE_RANDOM:         "Generate Random Number",
	CMD_ACQUIRER_MASTER_KEK:     "Generate Acquirer Master KEK",
	CMD_TRANSLATE_PIN_TPK_ZPK:   "Translate PIN from TPK to ZPK",
	CMD_INITIAL_TMKS:            "Generate Initial TMKs",
	CMD_TRANSLATE_PIN:           "Translate PIN",
	CMD_KEK_VALIDATION_REQUEST:  "KEK Validation Request",
	CMD_KEK_VALIDATION_RESPONSE: "KEK Validation Response",
	CMD_GENERATE_RSA_KEY_PAIR:   "Generate RSA Key Pair",
	CMD_MAC_PUBLIC_KEY:          "Generate MAC on RSA Public Key",
	CMD_PUBLIC_KEY_VERIFICATION: "Public Key Verification Code",
	CMD_ENCRYPT_KCA_UNDER_KTI:   "Encrypt KCA under KTI",
	CMD_DECRYPT_PIN_PAD_KEY:     "Decrypt PIN Pad Public Key",
	CMD_PRINT_COMPONENTS:        "Print Key Components",
	CMD_PRINT_KEY:               "Print Key",
	CMD_SET_ZONE_KEYS:           "Set of Zone Keys",
	CMD_TRANSLATE_ZONE_KEYS:     "Translate Set of Zone Keys",
	CMD_LOAD_FORMATTING:         "Load Formatting Data",
	CMD_PIN_PAD_ACQUIRER_ID:     "PIN Pad Acquirer Security Number",
	CMD_PRINT_TMK:               "Print TMK",
}

// NewCommandCode validates s as a command code.
func NewCommandCode(s string) (CommandCode, error) {
	c := CommandCode(s)
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate checks that c is 2 uppercase letters or digits.
func (c CommandCode) Validate() error {
	if len(c) != 2 {
		return fmt.Errorf("%w: %q", ErrInvalidCommandCode, string(c))
	}
	for i := 0; i < 2; i++ {
		b := c[i]
		if !(b >= 'A' && b <= 'Z') && !(b >= '0' && b <= '9') {
			return fmt.Errorf("%w: %q", ErrInvalidCommandCode, string(c))
		}
	}
	return nil
}

// ResponseCode returns the code the HSM answers c with: the second character incremented.
// "A0" becomes "A1", "EI" becomes "EJ". A trailing 'Z' or '9' has no successor and is returned unchanged.
func (c CommandCode) ResponseCode() string {
	if len(c) != 2 || c[1] == 'Z' || c[1] == '9' {
		return string(c)
	}
	return string([]byte{c[0], c[1] + 1})
}

// Verbose returns a readable label, e.g. "[A0] Generate Key".
func (c CommandCode) Verbose() string {
	if name, ok := commandNames[c]; ok {
		return fmt.Sprintf("[%s] %s", string(c), name)
	}
	return fmt.Sprintf("[%s] Unknown Command", string(c))
}
