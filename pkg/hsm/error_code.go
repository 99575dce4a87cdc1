package hsm

import "fmt"

// Error Code Logic:
//
// Every response carries a 2-digit error code right after the response code.
//
// 1. '00': No error. The payload holds the command specific fields.
//
// 2. '01': Verification failure. Returned by verify style commands (C4, PIN checks);
//    the request was processed but the check did not pass.
//
// 3. Anything else: the HSM refused the request. Only the prologue is meaningful.

// ErrorCode is the 2-digit error code of a response.
type ErrorCode string

const (
	ERR_NONE                  ErrorCode = "00"
	ERR_VERIFICATION_FAILURE  ErrorCode = "01"
	ERR_KEY_INAPPROPRIATE_LEN ErrorCode = "02"
	ERR_INVALID_KEY_TYPE_CODE ErrorCode = "04"
	ERR_INVALID_KEY_LEN_FLAG  ErrorCode = "05"
	ERR_SOURCE_KEY_PARITY     ErrorCode = "10"
	ERR_DEST_KEY_PARITY       ErrorCode = "11"
	ERR_USER_STORAGE_EMPTY    ErrorCode = "12"
	ERR_LMK_PARITY            ErrorCode = "13"
	ERR_PIN_UNDER_LMK_INVALID ErrorCode = "14"
	ERR_INVALID_INPUT_DATA    ErrorCode = "15"
	ERR_PRINTER_NOT_READY     ErrorCode = "16"
	ERR_NOT_AUTHORIZED        ErrorCode = "17"
	ERR_FORMAT_NOT_LOADED     ErrorCode = "18"
	ERR_INVALID_PIN_BLOCK     ErrorCode = "20"
	ERR_INVALID_INDEX         ErrorCode = "21"
	ERR_INVALID_ACCOUNT       ErrorCode = "22"
	ERR_INVALID_PIN_FORMAT    ErrorCode = "23"
	ERR_PIN_LENGTH            ErrorCode = "24"
	ERR_DECIMALIZATION_TABLE  ErrorCode = "25"
	ERR_INVALID_KEY_SCHEME    ErrorCode = "26"
	ERR_INCOMPATIBLE_KEY_LEN  ErrorCode = "27"
	ERR_INVALID_KEY_TYPE      ErrorCode = "28"
	ERR_FUNCTION_NOT_ALLOWED  ErrorCode = "29"
	ERR_INVALID_REFERENCE     ErrorCode = "30"
	ERR_INTERNAL_FAILURE      ErrorCode = "41"
	ERR_DES_FAILURE           ErrorCode = "42"
	ERR_COMMAND_DISABLED      ErrorCode = "68"
	ERR_REQUEST_PARITY        ErrorCode = "90"
	ERR_LRC                   ErrorCode = "91"
	ERR_COUNT_OUT_OF_RANGE    ErrorCode = "92"
)

var errorCodeDescriptions = map[ErrorCode]string{
	ERR_NONE:                  "No error",
	ERR_VERIFICATION_FAILURE:  "Verification failure or warning of imported key parity error",
	ERR_KEY_INAPPROPRIATE_LEN: "Key inappropriate length for algorithm",
	ERR_INVALID_KEY_TYPE_CODE: "Invalid key type code",
	ERR_INVALID_KEY_LEN_FLAG:  "Invalid key length flag",
	ERR_SOURCE_KEY_PARITY:     "Source key parity error",
	ERR_DEST_KEY_PARITY:       "Destination key parity error or key all zeros",
	ERR_USER_STORAGE_EMPTY:    "Contents of user storage not available",
	ERR_LMK_PARITY:            "Master key parity error",
	ERR_PIN_UNDER_LMK_INVALID: "PIN block under LMK is invalid",
	ERR_INVALID_INPUT_DATA:    "Invalid input data",
	ERR_PRINTER_NOT_READY:     "Console or printer not ready or not connected",
	ERR_NOT_AUTHORIZED:        "HSM not in authorized state",
	ERR_FORMAT_NOT_LOADED:     "Document format definition not loaded",
	ERR_INVALID_PIN_BLOCK:     "PIN block does not contain valid values",
	ERR_INVALID_INDEX:         "Invalid index value",
	ERR_INVALID_ACCOUNT:       "Invalid account number",
	ERR_INVALID_PIN_FORMAT:    "Invalid PIN block format code",
	ERR_PIN_LENGTH:            "PIN is fewer than 4 or more than 12 digits",
	ERR_DECIMALIZATION_TABLE:  "Decimalization table error",
	ERR_INVALID_KEY_SCHEME:    "Invalid key scheme",
	ERR_INCOMPATIBLE_KEY_LEN:  "Incompatible key length",
	ERR_INVALID_KEY_TYPE:      "Invalid key type",
	ERR_FUNCTION_NOT_ALLOWED:  "Key function not permitted",
	ERR_INVALID_REFERENCE:     "Invalid reference number",
	ERR_INTERNAL_FAILURE:      "Internal hardware or software error",
	ERR_DES_FAILURE:           "DES failure",
	ERR_COMMAND_DISABLED:      "Command has been disabled",
	ERR_REQUEST_PARITY:        "Data parity error in the request message",
	ERR_LRC:                   "LRC character does not match the message",
	ERR_COUNT_OUT_OF_RANGE:    "Count value not within limits",
}

// IsValid reports whether e is two ASCII digits.
func (e ErrorCode) IsValid() bool {
	return len(e) == 2 && isDigit(e[0]) && isDigit(e[1])
}

// IsSuccess reports whether e is "00".
func (e ErrorCode) IsSuccess() bool {
	return e == ERR_NONE
}

// IsVerificationFailure reports whether e is "01".
func (e ErrorCode) IsVerificationFailure() bool {
	return e == ERR_VERIFICATION_FAILURE
}

// Verbose returns a readable description, e.g. "[05] Invalid key length flag".
func (e ErrorCode) Verbose() string {
	if desc, ok := errorCodeDescriptions[e]; ok {
		return fmt.Sprintf("[%s] %s", string(e), desc)
	}
	return fmt.Sprintf("[%s] Unknown error code", string(e))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
