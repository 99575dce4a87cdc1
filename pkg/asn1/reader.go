package asn1

import (
	"fmt"
	"math"
)

// level describes the nesting level a tag belongs to: start is the absolute
// offset of the first sibling, end is the payload length of the parent.
// The zero value is the top level.
type level struct {
	start int
	end   int
}

// cursor is the decoded state of the tag the Reader is positioned on.
type cursor struct {
	level         level
	offset        int
	tag           byte
	headerLength  int
	payloadLength int
	constructed   bool
	childCount    int
	next          int
	nextLevel     int
}

func (c cursor) tagLength() int    { return c.headerLength + c.payloadLength }
func (c cursor) payloadStart() int { return c.offset + c.headerLength }

// Reader is a forward cursor over a single DER/BER encoded structure.
//
// It is positioned on exactly one tag at a time. MoveNext walks the
// structure depth-first, MoveNextCurrentLevel skips to the next sibling and
// MoveToPosition seeks to any offset already registered in the offset map.
// A Reader is not safe for concurrent use.
type Reader struct {
	raw     []byte
	offsets map[int]level
	cur     cursor
	err     error
}

// NewReader decodes the first TLV found in data and positions the cursor on it.
// Trailing bytes after the first TLV are discarded. The input is copied.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < 2 {
		return nil, ErrInvalidData
	}

	r := &Reader{offsets: map[int]level{0: {}}}
	r.raw = data

	headerLength, payloadLength, err := r.lengthAt(0)
	if err != nil {
		return nil, err
	}
	total := headerLength + payloadLength
	if total > len(data) {
		return nil, fmt.Errorf("declared %d bytes, got %d: %w", total, len(data), ErrTruncated)
	}

	r.raw = make([]byte, total)
	copy(r.raw, data[:total])

	c, err := r.decode(0, level{})
	if err != nil {
		return nil, err
	}
	r.cur = c
	return r, nil
}

// Err returns the error that stopped the last navigation call, if any.
func (r *Reader) Err() error { return r.err }

// Offset is the absolute position of the current identifier octet.
func (r *Reader) Offset() int { return r.cur.offset }

// Tag is the identifier octet of the current tag.
func (r *Reader) Tag() byte { return r.cur.tag }

// TagName is the display name of the current tag.
func (r *Reader) TagName() string { return TagName(r.cur.tag) }

// TagLength is the full TLV length (header plus payload).
func (r *Reader) TagLength() int { return r.cur.tagLength() }

// HeaderLength is the length of the identifier and length octets.
func (r *Reader) HeaderLength() int { return r.cur.headerLength }

// PayloadStart is the absolute position of the first content octet.
func (r *Reader) PayloadStart() int { return r.cur.payloadStart() }

// PayloadLength is the number of content octets declared by the length field.
func (r *Reader) PayloadLength() int { return r.cur.payloadLength }

// IsConstructed reports whether the current tag has been resolved as a container.
func (r *Reader) IsConstructed() bool { return r.cur.constructed }

// NextOffset is the position MoveNext will go to, 0 at the end of the buffer.
func (r *Reader) NextOffset() int { return r.cur.next }

// NextCurrentLevelOffset is the position of the next sibling, 0 if the current tag is the last one at its level.
func (r *Reader) NextCurrentLevelOffset() int { return r.cur.nextLevel }

// NestedNodeCount returns the number of direct children, 0 for primitive tags.
func (r *Reader) NestedNodeCount() int {
	if !r.cur.constructed {
		return 0
	}
	return r.cur.childCount
}

// Bytes returns a copy of the whole buffer the Reader works on.
func (r *Reader) Bytes() []byte {
	return clone(r.raw)
}

// Header returns the identifier and length octets of the current tag.
func (r *Reader) Header() []byte {
	return clone(r.raw[r.cur.offset:r.cur.payloadStart()])
}

// TagRawData returns the complete TLV of the current tag.
func (r *Reader) TagRawData() []byte {
	return clone(r.raw[r.cur.offset : r.cur.offset+r.cur.tagLength()])
}

// Contents returns all content octets, including the unused-bits octet of a BIT STRING.
func (r *Reader) Contents() []byte {
	start := r.cur.payloadStart()
	return clone(r.raw[start : start+r.cur.payloadLength])
}

// Payload returns the value carried by the current tag.
// For a BIT STRING the leading unused-bits octet is excluded.
func (r *Reader) Payload() []byte {
	contents := r.Contents()
	if r.cur.tag == byte(TypeBitString) && len(contents) > 0 {
		return contents[1:]
	}
	return contents
}

// MoveNext advances to the next tag in depth-first order: into the first child
// of a constructed tag, past the current tag otherwise.
// It returns false at the end of the buffer or on a decoding error (see Err).
func (r *Reader) MoveNext() bool {
	if r.err != nil || r.cur.next == 0 {
		return false
	}
	return r.moveTo(r.cur.next)
}

// MoveNextCurrentLevel advances to the next sibling without descending.
func (r *Reader) MoveNextCurrentLevel() bool {
	if r.err != nil || r.cur.nextLevel == 0 {
		return false
	}
	return r.moveTo(r.cur.nextLevel)
}

// MoveToPosition seeks to offset. Only offsets registered in the offset map
// (see BuildOffsetMap) are reachable; any other value returns false.
func (r *Reader) MoveToPosition(offset int) bool {
	if _, ok := r.offsets[offset]; !ok {
		return false
	}
	return r.moveTo(offset)
}

// Reset clears any navigation error and positions the cursor on the root tag.
func (r *Reader) Reset() {
	r.err = nil
	r.moveTo(0)
}

// BuildOffsetMap walks the whole structure once so that every tag becomes
// reachable through MoveToPosition. It returns the number of registered offsets.
// The cursor is left on the root tag.
func (r *Reader) BuildOffsetMap() (int, error) {
	r.Reset()
	for r.MoveNext() {
	}
	err := r.err
	r.Reset()
	return len(r.offsets), err
}

// Clone returns an independent Reader positioned on the same tag.
func (r *Reader) Clone() *Reader {
	offsets := make(map[int]level, len(r.offsets))
	for k, v := range r.offsets {
		offsets[k] = v
	}
	return &Reader{raw: r.raw, offsets: offsets, cur: r.cur, err: r.err}
}

func (r *Reader) moveTo(offset int) bool {
	c, err := r.decode(offset, r.offsets[offset])
	if err != nil {
		r.err = err
		return false
	}
	r.cur = c
	return true
}

// decode reads the tag at offset. The offset map may be extended when the tag
// is resolved as constructed; nothing else is modified.
func (r *Reader) decode(offset int, lvl level) (cursor, error) {
	if offset < 0 || offset+1 >= len(r.raw) {
		return cursor{}, fmt.Errorf("no tag at offset %d: %w", offset, ErrTruncated)
	}

	c := cursor{level: lvl, offset: offset, tag: r.raw[offset]}
	// 0 is reserved for BER and not available in DER
	if c.tag == 0 {
		return cursor{}, &InvalidTagError{Offset: offset}
	}

	var err error
	c.headerLength, c.payloadLength, err = r.lengthAt(offset)
	if err != nil {
		return cursor{}, err
	}
	end := offset + c.tagLength()
	if end > len(r.raw) {
		return cursor{}, fmt.Errorf("tag at offset %d ends at %d: %w", offset, end, ErrTruncated)
	}

	if c.payloadLength == 0 {
		if end != len(r.raw) {
			c.next = end
		}
		if lvl.end != 0 && offset-lvl.start+c.tagLength() != lvl.end {
			c.nextLevel = c.next
		}
		return c, nil
	}

	r.resolveNested(&c)

	if offset-lvl.start+c.tagLength() < lvl.end {
		c.nextLevel = end
	}
	switch {
	case c.constructed && c.tag == byte(TypeBitString):
		c.next = c.payloadStart() + 1
	case c.constructed:
		c.next = c.payloadStart()
	case end < len(r.raw):
		c.next = end
	}
	return c, nil
}

// resolveNested decides whether the payload of c is a sequence of TLVs.
// A candidate is only treated as constructed when its children lengths sum
// exactly to the payload length; otherwise it stays primitive.
func (r *Reader) resolveNested(c *cursor) {
	if IsRestrictedTag(c.tag) || c.payloadLength <= 2 {
		return
	}

	start, length := c.payloadStart(), c.payloadLength
	if c.tag == byte(TypeBitString) {
		// skip unused bits octet
		start, length = start+1, length-1
	}

	candidate := containsTag(multiNestedTags, c.tag) ||
		IsConstructedTag(c.tag) ||
		c.tag < byte(TagMask)
	if !candidate {
		return
	}

	ok, count := r.predict(start, length, false)
	if !ok {
		return
	}
	c.constructed = true
	c.childCount = count
	if _, mapped := r.offsets[start]; !mapped {
		r.predict(start, length, true)
	}
}

// predict checks that the TLVs starting at start fill exactly projected bytes.
// With assign set, every child offset is registered in the offset map.
func (r *Reader) predict(start, projected int, assign bool) (bool, int) {
	levelStart := start
	sum, count := 0, 0
	for {
		if start < 0 || start >= len(r.raw) || r.raw[start] == 0 {
			return false, 0
		}
		pl := r.predictLength(start)
		sum += pl
		if assign && sum <= projected {
			r.offsets[start] = level{start: levelStart, end: projected}
		}
		start += pl
		count++
		if sum >= projected {
			break
		}
	}
	if sum != projected {
		return false, 0
	}
	return true, count
}

// predictLength returns the TLV length at offset or math.MaxInt32 when the
// length octets are not usable.
func (r *Reader) predictLength(offset int) int {
	header, payload, err := r.lengthAt(offset)
	if err != nil {
		return math.MaxInt32
	}
	return header + payload
}

// lengthAt decodes the length octets following the identifier octet at offset.
func (r *Reader) lengthAt(offset int) (header int, payload int, err error) {
	if offset+1 >= len(r.raw) {
		return 0, 0, ErrTruncated
	}
	payload, err = PayloadLength(r.raw[offset+1:])
	if err != nil {
		return 0, 0, err
	}
	if payload < 0 {
		return 0, 0, &OverflowError{Msg: "data length is too large"}
	}
	header = 2
	if first := r.raw[offset+1]; first >= 0x80 {
		header += int(first &^ 0x80)
	}
	return header, payload, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
