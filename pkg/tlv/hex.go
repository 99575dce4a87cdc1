package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex joins parts, drops spaces and decodes the result. It panics on invalid hex
// and is meant for fixtures such as Hex("30 0B", "02 06 00C35A01779B").
func Hex(parts ...string) []byte {
	s := strings.ReplaceAll(strings.Join(parts, ""), " ", "")
	data, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("tlv: invalid hex %q: %v", s, err))
	}
	return data
}
