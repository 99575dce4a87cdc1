package asn1

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData is returned when the buffer cannot hold a single TLV or uses
	// an encoding this package does not support (indefinite length).
	ErrInvalidData = errors.New("asn1: invalid data")

	// ErrTruncated is returned when a declared length runs past the end of the buffer.
	ErrTruncated = errors.New("asn1: truncated data")
)

// InvalidTagError reports a reserved tag (0x00) found where a TLV was expected.
type InvalidTagError struct {
	Offset int
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("asn1: invalid tag 0x00 at offset %d", e.Offset)
}

// OverflowError reports a length field that does not fit the supported range.
type OverflowError struct {
	Msg string
}

func (e *OverflowError) Error() string {
	return "asn1: " + e.Msg
}

// InvalidOperationError reports a tree mutation that was rejected.
// The tree is left untouched when it is returned.
type InvalidOperationError struct {
	Op  string
	Msg string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("asn1: %s: %s", e.Op, e.Msg)
}

// ValueError reports a value that cannot be encoded to or decoded from a given universal type.
type ValueError struct {
	Type Type
	Msg  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("asn1: %s: %s", e.Type, e.Msg)
}
