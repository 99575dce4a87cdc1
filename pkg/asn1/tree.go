package asn1

import (
	"fmt"
	"strconv"
	"strings"
)

/*
TREE LOGIC:
Nodes live in an arena (a slice) and are addressed by NodeID. They never
point at each other, only at IDs. Structural edits touch the node graph only;
sizes, offsets and the serialized buffer are then recomputed in one pass
from the root, so the buffer can never drift from the graph.
*/

// NodeID addresses a node inside its Tree. IDs stay valid until the node is removed.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is a snapshot of one TLV of the tree.
type Node struct {
	ID            NodeID
	Tag           byte
	Offset        int
	HeaderLength  int
	PayloadLength int
	Constructed   bool
	Parent        NodeID
	Children      []NodeID

	// value holds the content octets of a primitive node.
	value []byte
	// lead holds content octets that precede the children (BIT STRING unused bits).
	lead    []byte
	removed bool
}

// TagLength is the full TLV length.
func (n Node) TagLength() int { return n.HeaderLength + n.PayloadLength }

// PayloadStart is the absolute position of the first content octet.
func (n Node) PayloadStart() int { return n.Offset + n.HeaderLength }

// TagName is the display name of the node tag.
func (n Node) TagName() string { return TagName(n.Tag) }

// NestedNodeCount is the number of direct children.
func (n Node) NestedNodeCount() int { return len(n.Children) }

// Value returns a copy of the content octets of a primitive node, nil for constructed nodes.
func (n Node) Value() []byte {
	if n.Constructed {
		return nil
	}
	return clone(n.value)
}

// Tree is a mutable ASN.1 structure. It is not safe for concurrent use.
type Tree struct {
	nodes []Node
	root  NodeID
	raw   []byte
}

// ParseTree decodes data and builds its tree.
func ParseTree(data []byte) (*Tree, error) {
	r, err := NewReader(data)
	if err != nil {
		return nil, err
	}
	return BuildTree(r)
}

// BuildTree builds the tree of the structure r works on, starting from its root tag.
// r itself is not moved.
func BuildTree(r *Reader) (*Tree, error) {
	rr := r.Clone()
	if _, err := rr.BuildOffsetMap(); err != nil {
		return nil, fmt.Errorf("building offset map: %w", err)
	}

	t := &Tree{}
	root, err := t.build(rr, 0, NoNode)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.recompute()
	return t, nil
}

func (t *Tree) build(r *Reader, offset int, parent NodeID) (NodeID, error) {
	if !r.MoveToPosition(offset) {
		if err := r.Err(); err != nil {
			return NoNode, err
		}
		return NoNode, fmt.Errorf("no tag registered at offset %d: %w", offset, ErrInvalidData)
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:            id,
		Tag:           r.Tag(),
		Offset:        r.Offset(),
		HeaderLength:  r.HeaderLength(),
		PayloadLength: r.PayloadLength(),
		Constructed:   r.IsConstructed(),
		Parent:        parent,
	})
	if !r.IsConstructed() {
		t.nodes[id].value = r.Contents()
		return id, nil
	}

	first, end := r.NextOffset(), r.PayloadStart()+r.PayloadLength()
	if first > r.PayloadStart() {
		t.nodes[id].lead = r.Contents()[:first-r.PayloadStart()]
	}
	for pos := first; pos < end; {
		child, err := t.build(r, pos, id)
		if err != nil {
			return NoNode, err
		}
		t.nodes[id].Children = append(t.nodes[id].Children, child)
		pos += t.nodes[child].TagLength()
	}
	return id, nil
}

// Root returns the ID of the root node.
func (t *Tree) Root() NodeID { return t.root }

// Node returns a snapshot of the node, false if id is unknown or removed.
func (t *Tree) Node(id NodeID) (Node, bool) {
	if !t.valid(id) {
		return Node{}, false
	}
	n := t.nodes[id]
	n.Children = append([]NodeID(nil), n.Children...)
	return n, true
}

// Children returns the direct children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return append([]NodeID(nil), t.nodes[id].Children...)
}

// Parent returns the parent of id, false for the root.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	if !t.valid(id) || t.nodes[id].Parent == NoNode {
		return NoNode, false
	}
	return t.nodes[id].Parent, true
}

// Len is the number of live nodes.
func (t *Tree) Len() int {
	return len(t.Flatten())
}

// Bytes returns a copy of the serialized tree.
func (t *Tree) Bytes() []byte {
	return clone(t.raw)
}

// Raw returns the encoding of the subtree rooted at id.
func (t *Tree) Raw(id NodeID) []byte {
	if !t.valid(id) {
		return nil
	}
	n := t.nodes[id]
	return clone(t.raw[n.Offset : n.Offset+n.TagLength()])
}

// Insert parses raw (a single complete TLV) and inserts it as the index-th
// child of parent. An index past the last child appends.
// Nothing is modified when an error is returned.
func (t *Tree) Insert(parent NodeID, index int, raw []byte) (NodeID, error) {
	if !t.valid(parent) {
		return NoNode, &InvalidOperationError{Op: "insert", Msg: fmt.Sprintf("unknown node %d", parent)}
	}
	p := t.nodes[parent]
	if IsRestrictedTag(p.Tag) {
		return NoNode, &InvalidOperationError{Op: "insert", Msg: fmt.Sprintf("%s cannot have children", p.TagName())}
	}
	if !p.Constructed && len(p.value) > 0 {
		return NoNode, &InvalidOperationError{Op: "insert", Msg: fmt.Sprintf("%s at offset %d holds a primitive value", p.TagName(), p.Offset)}
	}
	if index < 0 {
		return NoNode, &InvalidOperationError{Op: "insert", Msg: fmt.Sprintf("negative index %d", index)}
	}

	r, err := NewReader(raw)
	if err != nil {
		return NoNode, fmt.Errorf("insert: %w", err)
	}
	if r.TagLength() != len(raw) {
		return NoNode, &InvalidOperationError{Op: "insert", Msg: fmt.Sprintf("%d trailing bytes after the node", len(raw)-r.TagLength())}
	}
	sub, err := BuildTree(r)
	if err != nil {
		return NoNode, fmt.Errorf("insert: %w", err)
	}

	id := t.graft(sub, sub.root, parent)
	pn := &t.nodes[parent]
	if !pn.Constructed {
		pn.Constructed = true
		pn.value = nil
		if pn.Tag == byte(TypeBitString) {
			pn.lead = []byte{0x00}
		}
	}
	if index >= len(pn.Children) {
		pn.Children = append(pn.Children, id)
	} else {
		pn.Children = append(pn.Children[:index], append([]NodeID{id}, pn.Children[index:]...)...)
	}
	t.recompute()
	return id, nil
}

// Append inserts raw as the last child of parent.
func (t *Tree) Append(parent NodeID, raw []byte) (NodeID, error) {
	return t.Insert(parent, len(t.Children(parent)), raw)
}

// graft copies the subtree src of another tree into t, under parent.
func (t *Tree) graft(src *Tree, srcID NodeID, parent NodeID) NodeID {
	n := src.nodes[srcID]
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:          id,
		Tag:         n.Tag,
		Constructed: n.Constructed,
		Parent:      parent,
		value:       clone(n.value),
		lead:        clone(n.lead),
	})
	for _, c := range n.Children {
		child := t.graft(src, c, id)
		t.nodes[id].Children = append(t.nodes[id].Children, child)
	}
	return id
}

// Remove detaches id and its descendants. The root cannot be removed.
func (t *Tree) Remove(id NodeID) error {
	if !t.valid(id) {
		return &InvalidOperationError{Op: "remove", Msg: fmt.Sprintf("unknown node %d", id)}
	}
	if id == t.root {
		return &InvalidOperationError{Op: "remove", Msg: "the root node cannot be removed"}
	}

	p := &t.nodes[t.nodes[id].Parent]
	for i, c := range p.Children {
		if c == id {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	t.markRemoved(id)
	t.recompute()
	return nil
}

func (t *Tree) markRemoved(id NodeID) {
	t.nodes[id].removed = true
	for _, c := range t.nodes[id].Children {
		t.markRemoved(c)
	}
}

// SetValue replaces the content octets of a primitive node.
func (t *Tree) SetValue(id NodeID, value []byte) error {
	if !t.valid(id) {
		return &InvalidOperationError{Op: "set value", Msg: fmt.Sprintf("unknown node %d", id)}
	}
	n := &t.nodes[id]
	if n.Constructed {
		return &InvalidOperationError{Op: "set value", Msg: fmt.Sprintf("%s at offset %d is constructed", n.TagName(), n.Offset)}
	}
	n.value = clone(value)
	t.recompute()
	return nil
}

// Walk visits the tree depth-first. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	t.walk(t.root, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(Node, int) bool) bool {
	n, _ := t.Node(id)
	if !fn(n, depth) {
		return false
	}
	for _, c := range t.nodes[id].Children {
		if !t.walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// Flatten returns every live node ID in depth-first order.
func (t *Tree) Flatten() []NodeID {
	var out []NodeID
	t.Walk(func(n Node, _ int) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

// Find returns the first node, in depth-first order, matching pred.
func (t *Tree) Find(pred func(Node) bool) (NodeID, bool) {
	found := NoNode
	t.Walk(func(n Node, _ int) bool {
		if pred(n) {
			found = n.ID
			return false
		}
		return true
	})
	return found, found != NoNode
}

// Depth is 0 for the root.
func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for p, ok := t.Parent(id); ok; p, ok = t.Parent(p) {
		depth++
	}
	return depth
}

// Path returns the child indices leading to id, e.g. "/0/2". The root is "/".
func (t *Tree) Path(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	var parts []string
	for cur := id; cur != t.root; cur = t.nodes[cur].Parent {
		siblings := t.nodes[t.nodes[cur].Parent].Children
		for i, s := range siblings {
			if s == cur {
				parts = append([]string{strconv.Itoa(i)}, parts...)
				break
			}
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Lookup resolves a path produced by Path.
func (t *Tree) Lookup(path string) (NodeID, bool) {
	cur := t.root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 || i >= len(t.nodes[cur].Children) {
			return NoNode, false
		}
		cur = t.nodes[cur].Children[i]
	}
	return cur, true
}

// ViewValue renders the value of a node (see the package level ViewValue).
func (t *Tree) ViewValue(id NodeID) (string, error) {
	raw := t.Raw(id)
	if raw == nil {
		return "", &InvalidOperationError{Op: "view", Msg: fmt.Sprintf("unknown node %d", id)}
	}
	r, err := NewReader(raw)
	if err != nil {
		return "", err
	}
	return ViewValue(r)
}

// Describe returns a human readable dump of the tree.
func (t *Tree) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== ASN.1 TREE ===\n")
	t.Walk(func(n Node, depth int) bool {
		fmt.Fprintf(&sb, "%s[%04d] %s (%d)", strings.Repeat("  ", depth), n.Offset, n.TagName(), n.PayloadLength)
		if !n.Constructed {
			if v, err := t.ViewValue(n.ID); err == nil && v != "" {
				fmt.Fprintf(&sb, ": %s", v)
			}
		}
		sb.WriteString("\n")
		return true
	})
	return sb.String()
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].removed
}

// recompute refreshes sizes bottom-up, then offsets top-down, then serializes.
func (t *Tree) recompute() {
	t.size(t.root)
	t.place(t.root, 0)
	t.raw = t.serialize(t.root, make([]byte, 0, t.nodes[t.root].TagLength()))
}

func (t *Tree) size(id NodeID) int {
	n := &t.nodes[id]
	payload := len(n.value)
	if n.Constructed {
		payload = len(n.lead)
		for _, c := range n.Children {
			payload += t.size(c)
		}
	}
	n = &t.nodes[id]
	n.PayloadLength = payload
	n.HeaderLength = 1 + len(LengthBytes(payload))
	return n.TagLength()
}

func (t *Tree) place(id NodeID, offset int) {
	n := &t.nodes[id]
	n.Offset = offset
	pos := n.PayloadStart() + len(n.lead)
	for _, c := range n.Children {
		t.place(c, pos)
		pos += t.nodes[c].TagLength()
	}
}

func (t *Tree) serialize(id NodeID, dst []byte) []byte {
	n := t.nodes[id]
	dst = append(dst, n.Tag)
	dst = append(dst, LengthBytes(n.PayloadLength)...)
	if !n.Constructed {
		return append(dst, n.value...)
	}
	dst = append(dst, n.lead...)
	for _, c := range n.Children {
		dst = t.serialize(c, dst)
	}
	return dst
}
