package asn1

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// assertConsistent checks that every live node points at its own tag byte
// and that the buffer is exactly the re-encoding of the root.
func assertConsistent(t *testing.T, tree *Tree) {
	t.Helper()
	raw := tree.Bytes()
	for _, id := range tree.Flatten() {
		n, _ := tree.Node(id)
		if n.Offset >= len(raw) || raw[n.Offset] != n.Tag {
			t.Fatalf("node %d (%s) offset %d does not point at its tag", id, n.TagName(), n.Offset)
		}
		if n.Constructed {
			sum := 0
			for _, c := range n.Children {
				cn, _ := tree.Node(c)
				sum += cn.TagLength()
			}
			if lead := n.PayloadLength - sum; lead < 0 || lead > 1 {
				t.Fatalf("children of node %d cover %d bytes; payload is %d", id, sum, n.PayloadLength)
			}
		}
	}
	if diff := cmp.Diff(raw, tree.Raw(tree.Root())); diff != "" {
		t.Fatalf("root re-encoding differs from buffer (-buffer +root):\n%s", diff)
	}

	reparsed, err := ParseTree(raw)
	if err != nil {
		t.Fatalf("buffer no longer parses: %v", err)
	}
	if diff := cmp.Diff(raw, reparsed.Bytes()); diff != "" {
		t.Fatalf("reparsed tree differs (-want +got):\n%s", diff)
	}
}

func TestBuildTree_SequenceOfTwoPrimitives(t *testing.T) {
	tree, err := ParseTree(simpleSequence)
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}

	root, _ := tree.Node(tree.Root())
	if root.NestedNodeCount() != 2 {
		t.Fatalf("root has %d children; want 2", root.NestedNodeCount())
	}
	for _, c := range root.Children {
		n, _ := tree.Node(c)
		if n.Constructed || n.NestedNodeCount() != 0 {
			t.Errorf("child %s should be primitive without children", n.TagName())
		}
	}

	integer, _ := tree.Node(root.Children[0])
	if diff := cmp.Diff(tlv.Hex("01 2C"), integer.Value()); diff != "" {
		t.Errorf("INTEGER value mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(simpleSequence, tree.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, tree)
}

func TestBuildTree_Nested(t *testing.T) {
	tree, err := ParseTree(publicKeyInfo)
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	if tree.Len() != 8 {
		t.Errorf("Len = %d; want 8", tree.Len())
	}

	bitString, ok := tree.Lookup("/1")
	if !ok {
		t.Fatal("path /1 not found")
	}
	n, _ := tree.Node(bitString)
	if n.Tag != byte(TypeBitString) || !n.Constructed || n.NestedNodeCount() != 1 {
		t.Errorf("unexpected BIT STRING node: %+v", n)
	}

	exponent, ok := tree.Lookup("/1/0/1")
	if !ok {
		t.Fatal("path /1/0/1 not found")
	}
	if tree.Depth(exponent) != 3 || tree.Path(exponent) != "/1/0/1" {
		t.Errorf("Depth = %d, Path = %q", tree.Depth(exponent), tree.Path(exponent))
	}
	if tree.Path(tree.Root()) != "/" {
		t.Errorf("root Path = %q", tree.Path(tree.Root()))
	}

	oid, found := tree.Find(func(n Node) bool { return n.Tag == byte(TypeObjectIdentifier) })
	if !found {
		t.Fatal("OID not found")
	}
	if v, _ := tree.ViewValue(oid); v != "rsaEncryption (1.2.840.113549.1.1.1)" {
		t.Errorf("ViewValue = %q", v)
	}

	assertConsistent(t, tree)
}

func TestTree_InsertGrowsAncestorHeaders(t *testing.T) {
	tree, _ := ParseTree(publicKeyInfo)
	algorithm, _ := tree.Lookup("/0")

	// 200 bytes push the root and the algorithm identifier to long form lengths
	blob := EncodeOctetString(bytes.Repeat([]byte{0x00}, 200))
	id, err := tree.Append(algorithm, blob)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	root, _ := tree.Node(tree.Root())
	if root.HeaderLength != 3 || root.PayloadLength != 27+203 {
		t.Errorf("root header %d payload %d", root.HeaderLength, root.PayloadLength)
	}
	if tree.Path(id) != "/0/2" {
		t.Errorf("inserted node Path = %q", tree.Path(id))
	}
	if diff := cmp.Diff(blob, tree.Raw(id)); diff != "" {
		t.Errorf("inserted raw mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, tree)

	if err := tree.Remove(id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if diff := cmp.Diff(publicKeyInfo, tree.Bytes()); diff != "" {
		t.Errorf("removing the inserted node should restore the buffer (-want +got):\n%s", diff)
	}
	assertConsistent(t, tree)
}

func TestTree_InsertAtIndex(t *testing.T) {
	tree, _ := ParseTree(simpleSequence)
	first := tree.Children(tree.Root())[0]

	id, err := tree.Insert(tree.Root(), 0, EncodeInt64(5))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if tree.Path(id) != "/0" || tree.Path(first) != "/1" {
		t.Errorf("paths after insert: new %q, old first %q", tree.Path(id), tree.Path(first))
	}

	expected := tlv.Hex("30 0C 02 01 05 02 02 01 2C 04 03 61 62 63")
	if diff := cmp.Diff(expected, tree.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, tree)

	// index past the end appends
	last, err := tree.Insert(tree.Root(), 99, EncodeNull())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if tree.Path(last) != "/3" {
		t.Errorf("Path = %q; want /3", tree.Path(last))
	}
	assertConsistent(t, tree)
}

func TestTree_RejectedMutations(t *testing.T) {
	tree, _ := ParseTree(simpleSequence)
	before := tree.Bytes()
	integer := tree.Children(tree.Root())[0]
	octets := tree.Children(tree.Root())[1]

	tests := []struct {
		name string
		op   func() error
	}{
		{"Child under INTEGER", func() error {
			_, err := tree.Insert(integer, 0, EncodeNull())
			return err
		}},
		{"Child under primitive value", func() error {
			_, err := tree.Insert(octets, 0, EncodeNull())
			return err
		}},
		{"Negative index", func() error {
			_, err := tree.Insert(tree.Root(), -1, EncodeNull())
			return err
		}},
		{"Trailing bytes", func() error {
			_, err := tree.Insert(tree.Root(), 0, tlv.Hex("05 00 05 00"))
			return err
		}},
		{"Remove root", func() error { return tree.Remove(tree.Root()) }},
		{"Set value on constructed", func() error { return tree.SetValue(tree.Root(), tlv.Hex("00")) }},
		{"Unknown node", func() error { return tree.Remove(NodeID(42)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ioe *InvalidOperationError
			if err := tt.op(); !errors.As(err, &ioe) {
				t.Errorf("expected an InvalidOperationError, got %v", err)
			}
			if diff := cmp.Diff(before, tree.Bytes()); diff != "" {
				t.Errorf("buffer changed after a rejected mutation (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := tree.Insert(tree.Root(), 0, tlv.Hex("30 05 02 01")); err == nil {
		t.Error("truncated node should be rejected")
	}
}

func TestTree_SetValueAndRemove(t *testing.T) {
	tree, _ := ParseTree(simpleSequence)
	octets := tree.Children(tree.Root())[1]

	if err := tree.SetValue(octets, bytes.Repeat([]byte{0x41}, 130)); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	n, _ := tree.Node(octets)
	if n.HeaderLength != 3 || n.PayloadLength != 130 {
		t.Errorf("header %d payload %d", n.HeaderLength, n.PayloadLength)
	}
	assertConsistent(t, tree)

	integer := tree.Children(tree.Root())[0]
	if err := tree.Remove(integer); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := tree.Node(integer); ok {
		t.Error("removed node should not be reachable")
	}
	if tree.Len() != 2 {
		t.Errorf("Len = %d; want 2", tree.Len())
	}
	assertConsistent(t, tree)
}

func TestTree_InsertIntoEmptyContainer(t *testing.T) {
	tree, err := ParseTree(tlv.Hex("30 00"))
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	if _, err := tree.Append(tree.Root(), EncodeInt64(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if diff := cmp.Diff(tlv.Hex("30 03 02 01 01"), tree.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestTree_Describe(t *testing.T) {
	tree, _ := ParseTree(simpleSequence)
	out := tree.Describe()

	expected := []string{
		"=== ASN.1 TREE ===",
		"[0000] SEQUENCE (9)",
		"  [0002] INTEGER (2): 012C",
		"  [0006] OCTET_STRING (3): 616263",
	}
	for _, line := range expected {
		if !strings.Contains(out, line) {
			t.Errorf("Describe output missing %q\n%s", line, out)
		}
	}
}
