package asn1

import (
	"fmt"

	"github.com/gregLibert/hsm-gateway/pkg/bits"
)

// Type is the universal tag number (bits 5-1 of the identifier octet).
type Type byte

// Universal tag numbers according to X.680.
const (
	TypeReserved         Type = 0
	TypeBoolean          Type = 1
	TypeInteger          Type = 2
	TypeBitString        Type = 3
	TypeOctetString      Type = 4
	TypeNull             Type = 5
	TypeObjectIdentifier Type = 6
	TypeObjectDescriptor Type = 7
	TypeExternal         Type = 8
	TypeReal             Type = 9
	TypeEnumerated       Type = 10
	TypeEmbeddedPDV      Type = 11
	TypeUTF8String       Type = 12
	TypeRelativeOID      Type = 13
	TypeSequence         Type = 16
	TypeSet              Type = 17
	TypeNumericString    Type = 18
	TypePrintableString  Type = 19
	TypeTeletexString    Type = 20
	TypeVideotexString   Type = 21
	TypeIA5String        Type = 22
	TypeUTCTime          Type = 23
	TypeGeneralizedTime  Type = 24
	TypeGraphicString    Type = 25
	TypeVisibleString    Type = 26
	TypeGeneralString    Type = 27
	TypeUniversalString  Type = 28
	TypeCharacterString  Type = 29
	TypeBMPString        Type = 30

	// TagMask isolates the tag number from the identifier octet.
	TagMask Type = 31
)

var typeNames = map[Type]string{
	TypeReserved:         "RESERVED",
	TypeBoolean:          "BOOLEAN",
	TypeInteger:          "INTEGER",
	TypeBitString:        "BIT_STRING",
	TypeOctetString:      "OCTET_STRING",
	TypeNull:             "NULL",
	TypeObjectIdentifier: "OBJECT_IDENTIFIER",
	TypeObjectDescriptor: "ObjectDescriptor",
	TypeExternal:         "EXTERNAL",
	TypeReal:             "REAL",
	TypeEnumerated:       "ENUMERATED",
	TypeEmbeddedPDV:      "EMBEDDED_PDV",
	TypeUTF8String:       "UTF8String",
	TypeRelativeOID:      "RELATIVE_OID",
	TypeSequence:         "SEQUENCE",
	TypeSet:              "SET",
	TypeNumericString:    "NumericString",
	TypePrintableString:  "PrintableString",
	TypeTeletexString:    "TeletexString",
	TypeVideotexString:   "VideotexString",
	TypeIA5String:        "IA5String",
	TypeUTCTime:          "UTCTime",
	TypeGeneralizedTime:  "GeneralizedTime",
	TypeGraphicString:    "GraphicString",
	TypeVisibleString:    "VisibleString",
	TypeGeneralString:    "GeneralString",
	TypeUniversalString:  "UniversalString",
	TypeCharacterString:  "CHARACTER_STRING",
	TypeBMPString:        "BMPString",
	TagMask:              "TAG_MASK",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNIVERSAL (%d)", byte(t))
}

// Class is the tag class carried by bits 8-7 of the identifier octet.
// ClassConstructed is the bit 6 flag and may be combined with any class.
type Class byte

const (
	ClassUniversal       Class = 0x00
	ClassConstructed     Class = 0x20
	ClassApplication     Class = 0x40
	ClassContextSpecific Class = 0x80
	ClassPrivate         Class = 0xC0
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassConstructed:
		return "CONSTRUCTED"
	case ClassApplication:
		return "APPLICATION"
	case ClassContextSpecific:
		return "CONTEXT SPECIFIC"
	case ClassPrivate:
		return "PRIVATE"
	default:
		return fmt.Sprintf("Unknown Class (0x%02X)", byte(c))
	}
}

// ClassOf extracts the class bits of an identifier octet.
func ClassOf(tag byte) Class {
	return Class(bits.GetRange(tag, 8, 7) << 6)
}

// IsConstructedTag reports whether bit 6 (the constructed flag) is set.
func IsConstructedTag(tag byte) bool {
	return bits.IsSet(tag, 6)
}

// TagNumber returns bits 5-1 of the identifier octet.
func TagNumber(tag byte) byte {
	return bits.GetRange(tag, 5, 1)
}

// TagName returns a display name for an identifier octet.
// Non-universal tags are rendered with their class and number, e.g. "CONTEXT SPECIFIC (0)".
func TagName(tag byte) string {
	class := ClassOf(tag)
	if class != ClassUniversal {
		return fmt.Sprintf("%s (%d)", class, TagNumber(tag))
	}
	return Type(TagNumber(tag)).String()
}

// restrictedTags lists the universal tags that can only be encoded in primitive form.
var restrictedTags = []byte{
	byte(TypeReserved),
	byte(TypeBoolean),
	byte(TypeInteger),
	byte(TypeNull),
	byte(TypeObjectIdentifier),
	byte(TypeReal),
	byte(TypeEnumerated),
	byte(TypeRelativeOID),
}

// multiNestedTags are SEQUENCE and SET, in both their bare and constructed forms.
var multiNestedTags = []byte{
	byte(TypeSequence),
	byte(TypeSequence) | byte(ClassConstructed),
	byte(TypeSet),
	byte(TypeSet) | byte(ClassConstructed),
}

// RestrictedTags returns the list of tags that cannot have children.
func RestrictedTags() []byte {
	out := make([]byte, len(restrictedTags))
	copy(out, restrictedTags)
	return out
}

// IsRestrictedTag reports whether tag can only be encoded in primitive form.
func IsRestrictedTag(tag byte) bool {
	return containsTag(restrictedTags, tag)
}

func containsTag(set []byte, tag byte) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}
