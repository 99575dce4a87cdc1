/*
Package asn1 implements a cursor-based reader, primitive codecs and a mutable tree for ASN.1 structures encoded with the Distinguished (DER) or Basic (BER, definite length only) Encoding Rules.

It is used by the gateway to inspect RSA key material returned by the HSM (EI, EO, H2 commands), but it is a general purpose codec: any certificate, CRL or request can be loaded.

# Fundamentals

Every ASN.1 value is a Tag-Length-Value triplet:
 1. Tag: one identifier octet. Bits 8-7 carry the class (universal, application, context-specific, private), bit 6 the constructed flag, bits 5-1 the tag number.
 2. Length: short form (one octet below 0x80) or long form (0x80|n followed by n big-endian octets, n at most 4).
 3. Value: the payload (the "contents octets"). For constructed values, it is itself a sequence of TLVs.

# Constructed Detection

Some primitive universal types (OCTET STRING, BIT STRING) frequently wrap nested DER structures, for instance the public key inside a SubjectPublicKeyInfo. The Reader tries to predict such nesting: if the payload of a universal tag can be split into child TLVs whose lengths sum exactly to the payload length, the tag is treated as constructed. Tags in the restricted set (BOOLEAN, INTEGER, NULL, OBJECT IDENTIFIER, REAL, ENUMERATED, RELATIVE-OID) are never unrolled.

# Navigation

	r, err := asn1.NewReader(der)
	if err != nil {
	    log.Fatal(err)
	}
	for r.MoveNext() {
	    fmt.Printf("%d %s (%d bytes)\n", r.Offset(), r.TagName(), r.PayloadLength())
	}
	if err := r.Err(); err != nil {
	    log.Fatal(err)
	}

# Editing

A Tree is built from a Reader and can be mutated with Insert and Remove. Length headers of every ancestor are re-encoded and all offsets recomputed after each mutation, so Tree.Bytes always holds a valid encoding.
*/
package asn1
