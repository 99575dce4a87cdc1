package thales

import (
	"fmt"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// MAC COMMANDS (AS2805):
// C2 computes a MAC with the sending ZAK, C4 checks one with the receiving ZAK.
// The message is sent in a single block ("0") as binary data ("0"), behind its
// length as 4 hex digits.
//
//	C2 <block> <key type> <mode> <message type> <key> <len> <message>
//	C4 <block> <key type> <mode> <message type> <key> <mac> <len> <message>

// MaxMACMessage is the largest message the 4 hex digit length can describe.
const MaxMACMessage = 0xFFFF

const (
	macSingleBlock = "0"
	macKeyZAK      = "3"
	macBinary      = "0"
	macModeGen     = "3"
	macModeVerify  = "2"
)

const FieldMAC = "MAC"

var generateMACLayout = hsm.Layout{
	{Name: FieldMAC, Width: hsm.Rest},
}

func macLength(msg []byte) (string, error) {
	if len(msg) == 0 || len(msg) > MaxMACMessage {
		return "", fmt.Errorf("%w: message of %d bytes", ErrInvalidParameter, len(msg))
	}
	return fmt.Sprintf("%04X", len(msg)), nil
}

// GenerateMAC creates a C2 request computing the MAC of msg with zak.
func GenerateMAC(zak string, msg []byte) (*hsm.Request, error) {
	zak, err := qualify(SchemeU, "ZAK", zak)
	if err != nil {
		return nil, err
	}
	length, err := macLength(msg)
	if err != nil {
		return nil, err
	}

	params := append(message(macSingleBlock, macKeyZAK, macModeGen, macBinary, zak, length), msg...)
	return hsm.NewRequest(hsm.CMD_GENERATE_MAC, params, generateMACLayout), nil
}

// VerifyMAC creates a C4 request checking mac, 8 hex characters, against msg.
// A wrong MAC is answered with error code 01.
func VerifyMAC(zak, mac string, msg []byte) (*hsm.Request, error) {
	zak, err := qualify(SchemeU, "ZAK", zak)
	if err != nil {
		return nil, err
	}
	if err := hexField("MAC", mac, 8); err != nil {
		return nil, err
	}
	length, err := macLength(msg)
	if err != nil {
		return nil, err
	}

	params := append(message(macSingleBlock, macKeyZAK, macModeVerify, macBinary, zak, mac, length), msg...)
	return hsm.NewRequest(hsm.CMD_VERIFY_MAC, params, nil), nil
}

const FieldRandomNumber = "RandomNumber"

var generateRandomLayout = hsm.Layout{
	{Name: FieldRandomNumber, Width: 16},
}

// GenerateRandom creates a C6 request for a 16 hex character random number.
func GenerateRandom() *hsm.Request {
	return hsm.NewRequest(hsm.CMD_GENERATE_RANDOM, nil, generateRandomLayout)
}
