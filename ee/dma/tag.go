package dma

import (
	"fmt"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// TagID is the ID field of a source chain tag.
type TagID uint8

const (
	TagRefe TagID = 0x0 // transfer ADDR, then end
	TagCnt  TagID = 0x1 // transfer QWC following the tag
	TagNext TagID = 0x2 // transfer QWC following the tag, continue at ADDR
	TagRef  TagID = 0x3 // transfer ADDR, continue after the tag
	TagRefs TagID = 0x4 // same as TagRef with stall control
	TagCall TagID = 0x5
	TagRet  TagID = 0x6
	TagEnd  TagID = 0x7 // transfer QWC following the tag, then end

	// TagCnts shares its ID with TagRefe, it's only valid for destination
	// chains.
	TagCnts = TagRefe
)

var tagNames = []string{
	"refe", "cnt", "next", "ref",
	"refs", "call", "ret", "end",
}

func (id TagID) String() string {
	return tagNames[id&0x7]
}

// MaxQWC is the largest transfer a single tag or a normal mode transfer can
// describe.
const MaxQWC = 0xffff

// Tag is a DMA descriptor. A chain of tags describes a scatter-gather
// transfer and is terminated by a TagEnd tag with zero length.
type Tag struct {
	ID   TagID
	Addr cpu.Addr
	QWC  uint32
	IRQ  bool
}

// EndTag terminates a chain.
var EndTag = Tag{ID: TagEnd}

// Bytes returns the number of bytes the tag transfers.
func (t Tag) Bytes() int { return int(t.QWC) * cpu.QWordSize }

// Uint64 encodes the tag in its hardware layout.
func (t Tag) Uint64() uint64 {
	v := uint64(t.QWC&0xffff) | uint64(t.ID&0x7)<<28 | uint64(t.Addr)<<32
	if t.IRQ {
		v |= 1 << 31
	}
	return v
}

// Quad encodes the tag as a full quad word with the upper half cleared.
func (t Tag) Quad() ee.Quad {
	return ee.Quad{t.Uint64(), 0}
}

// DecodeTag parses the lower 64 bits of a quad word as a tag.
func DecodeTag(v uint64) Tag {
	return Tag{
		ID:   TagID((v >> 28) & 0x7),
		Addr: cpu.Addr(v >> 32),
		QWC:  uint32(v & 0xffff),
		IRQ:  (v>>31)&1 != 0,
	}
}

func (t Tag) String() string {
	return fmt.Sprintf("Tag{ID:%-4s Addr:0x%08x QWC:0x%x IRQ:%t}",
		t.ID, uint32(t.Addr), t.QWC, t.IRQ)
}

// ChainQWC sums the lengths of all tags up to the terminating TagEnd.
func ChainQWC(chain []Tag) (qwc int) {
	for _, t := range chain {
		if t.ID == TagEnd && t.QWC == 0 {
			break
		}
		qwc += int(t.QWC)
	}
	return
}
