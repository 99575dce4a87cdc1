package asn1

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// SEQUENCE { INTEGER 300, OCTET STRING "abc" }
var simpleSequence = tlv.Hex("30 09 02 02 01 2C 04 03 61 62 63")

// SubjectPublicKeyInfo shaped structure with a tiny RSA key:
// SEQUENCE { SEQUENCE { OID rsaEncryption, NULL }, BIT STRING { SEQUENCE { INTEGER 197, INTEGER 3 } } }
var publicKeyInfo = tlv.Hex(
	"30 1B",
	"30 0D 06 09 2A 86 48 86 F7 0D 01 01 01 05 00",
	"03 0A 00 30 07 02 02 00 C5 02 01 03",
)

type visited struct {
	Offset      int
	Name        string
	Constructed bool
	Payload     int
}

func walk(t *testing.T, r *Reader) []visited {
	t.Helper()
	var out []visited
	for {
		out = append(out, visited{r.Offset(), r.TagName(), r.IsConstructed(), r.PayloadLength()})
		if !r.MoveNext() {
			break
		}
	}
	if err := r.Err(); err != nil {
		t.Fatalf("walk stopped with error: %v", err)
	}
	return out
}

func TestReader_SimpleSequence(t *testing.T) {
	r, err := NewReader(simpleSequence)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	if r.NestedNodeCount() != 2 {
		t.Errorf("root NestedNodeCount = %d; want 2", r.NestedNodeCount())
	}

	expected := []visited{
		{0, "SEQUENCE", true, 9},
		{2, "INTEGER", false, 2},
		{6, "OCTET_STRING", false, 3},
	}
	if diff := cmp.Diff(expected, walk(t, r)); diff != "" {
		t.Errorf("walk mismatch (-want +got):\n%s", diff)
	}

	// positioned on the last tag
	if r.NestedNodeCount() != 0 {
		t.Errorf("primitive NestedNodeCount = %d; want 0", r.NestedNodeCount())
	}
	if !bytes.Equal(r.Payload(), []byte("abc")) {
		t.Errorf("Payload = %X", r.Payload())
	}
}

func TestReader_NestedWalk(t *testing.T) {
	r, err := NewReader(publicKeyInfo)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	expected := []visited{
		{0, "SEQUENCE", true, 27},
		{2, "SEQUENCE", true, 13},
		{4, "OBJECT_IDENTIFIER", false, 9},
		{15, "NULL", false, 0},
		{17, "BIT_STRING", true, 10},
		{20, "SEQUENCE", true, 7},
		{22, "INTEGER", false, 2},
		{26, "INTEGER", false, 1},
	}
	if diff := cmp.Diff(expected, walk(t, r)); diff != "" {
		t.Errorf("walk mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_BitStringPayload(t *testing.T) {
	r, _ := NewReader(publicKeyInfo)
	// root children are registered when the root is decoded
	if !r.MoveToPosition(17) {
		t.Fatal("offset 17 should be reachable")
	}

	if r.Tag() != byte(TypeBitString) {
		t.Fatalf("expected BIT STRING, got %s", r.TagName())
	}
	if got := r.Contents(); got[0] != 0x00 || len(got) != 10 {
		t.Errorf("Contents = %X", got)
	}
	if diff := cmp.Diff(tlv.Hex("30 07 02 02 00 C5 02 01 03"), r.Payload()); diff != "" {
		t.Errorf("Payload mismatch (-want +got):\n%s", diff)
	}
	if r.NextOffset() != 20 {
		t.Errorf("NextOffset = %d; want 20 (unused bits skipped)", r.NextOffset())
	}
	if r.NestedNodeCount() != 1 {
		t.Errorf("NestedNodeCount = %d; want 1", r.NestedNodeCount())
	}
	if diff := cmp.Diff(tlv.Hex("03 0A"), r.Header()); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_MoveNextCurrentLevel(t *testing.T) {
	r, _ := NewReader(publicKeyInfo)

	if r.MoveNextCurrentLevel() {
		t.Error("the root has no sibling")
	}

	r.MoveNext() // algorithm identifier
	if !r.MoveNextCurrentLevel() {
		t.Fatal("algorithm identifier should have a sibling")
	}
	if r.Offset() != 17 || r.Tag() != byte(TypeBitString) {
		t.Errorf("expected BIT STRING at 17, got %s at %d", r.TagName(), r.Offset())
	}
	if r.MoveNextCurrentLevel() {
		t.Error("BIT STRING is the last tag of its level")
	}
}

func TestReader_OffsetMapCompleteness(t *testing.T) {
	r, _ := NewReader(publicKeyInfo)

	count, err := r.BuildOffsetMap()
	if err != nil {
		t.Fatalf("BuildOffsetMap failed: %v", err)
	}
	if count != 8 {
		t.Errorf("BuildOffsetMap = %d; want 8", count)
	}
	if r.Offset() != 0 {
		t.Errorf("cursor should be back on the root, got %d", r.Offset())
	}

	// every constructed tag: children exactly fill the payload
	for _, off := range []int{0, 2, 17, 20} {
		if !r.MoveToPosition(off) {
			t.Fatalf("MoveToPosition(%d) failed", off)
		}
		end := r.PayloadStart() + r.PayloadLength()
		first := r.NextOffset()
		covered := first // unused bits octet of a BIT STRING included
		children := 0

		child := r.Clone()
		if !child.MoveToPosition(first) {
			t.Fatalf("first child of %d at %d is not mapped", off, first)
		}
		for {
			covered += child.TagLength()
			children++
			if !child.MoveNextCurrentLevel() {
				break
			}
		}
		if covered != end {
			t.Errorf("children of %s at %d end at %d; payload ends at %d", r.TagName(), off, covered, end)
		}
		if children != r.NestedNodeCount() {
			t.Errorf("%s at %d: counted %d children, NestedNodeCount = %d", r.TagName(), off, children, r.NestedNodeCount())
		}
	}

	if r.MoveToPosition(5) {
		t.Error("offset 5 is inside a tag and must not be reachable")
	}
}

func TestReader_MalformedFallsBackToPrimitive(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		// child claims 5 bytes, only 4 available in the parent payload
		{"Sequence with overflowing child", tlv.Hex("30 04 04 05 00 00")},
		{"Octet string with random content", tlv.Hex("04 04 30 05 02 01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(tt.data)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			if r.IsConstructed() {
				t.Error("expected a primitive fallback")
			}
			if r.MoveNext() {
				t.Error("MoveNext should reach the end")
			}
		})
	}
}

func TestReader_TrailingBytesDiscarded(t *testing.T) {
	r, err := NewReader(append(append([]byte{}, simpleSequence...), 0xDE, 0xAD))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if diff := cmp.Diff(simpleSequence, r.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestNewReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		check func(error) bool
	}{
		{"Too short", tlv.Hex("30"), func(err error) bool { return errors.Is(err, ErrInvalidData) }},
		{"Truncated", tlv.Hex("30 05 02 01"), func(err error) bool { return errors.Is(err, ErrTruncated) }},
		{"Reserved tag", tlv.Hex("00 00"), func(err error) bool {
			var ite *InvalidTagError
			return errors.As(err, &ite) && ite.Offset == 0
		}},
		{"Length too large", tlv.Hex("30 85 01 02 03 04 05"), func(err error) bool {
			var oe *OverflowError
			return errors.As(err, &oe)
		}},
		{"Indefinite length", tlv.Hex("30 80 02 01 01 00 00"), func(err error) bool { return errors.Is(err, ErrInvalidData) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.input)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestReader_Reset(t *testing.T) {
	r, _ := NewReader(simpleSequence)
	for r.MoveNext() {
	}
	r.Reset()
	if r.Offset() != 0 || r.Tag() != 0x30 {
		t.Errorf("Reset should go back to the root, got %s at %d", r.TagName(), r.Offset())
	}
	if diff := cmp.Diff(simpleSequence, r.TagRawData()); diff != "" {
		t.Errorf("TagRawData mismatch (-want +got):\n%s", diff)
	}
}

func TestTagName(t *testing.T) {
	tests := []struct {
		tag      byte
		expected string
	}{
		{0x02, "INTEGER"},
		{0x30, "SEQUENCE"},
		{0x31, "SET"},
		{0x0C, "UTF8String"},
		{0x1E, "BMPString"},
		{0xA0, "CONTEXT SPECIFIC (0)"},
		{0x83, "CONTEXT SPECIFIC (3)"},
		{0x61, "APPLICATION (1)"},
		{0xC2, "PRIVATE (2)"},
	}

	for _, tt := range tests {
		if got := TagName(tt.tag); got != tt.expected {
			t.Errorf("TagName(0x%02X) = %q; want %q", tt.tag, got, tt.expected)
		}
	}
}

func TestRestrictedTags(t *testing.T) {
	expected := []byte{0, 1, 2, 5, 6, 9, 10, 13}
	if diff := cmp.Diff(expected, RestrictedTags()); diff != "" {
		t.Errorf("RestrictedTags mismatch (-want +got):\n%s", diff)
	}
	RestrictedTags()[0] = 0xFF
	if !IsRestrictedTag(0) {
		t.Error("RestrictedTags must return a copy")
	}
}
