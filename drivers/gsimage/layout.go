package gsimage

import (
	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
)

// layout splits a readback of size bytes into a head moved by PIO up to the
// first image unit boundary, a DMA part of whole image units and a tail moved
// by PIO. If the GS output doesn't end on a quad word, the transfer height is
// padded and the surplus quad words are drained as dummies after the head or
// tail.
type layout struct {
	size int
	h    int // transfer height, padded when dummies are drained

	head, headDummy int // bytes, quad words
	dma             int // bytes
	tail, tailDummy int // bytes, quad words
}

// computeLayout lays out a readback of h lines of bpl bytes into memory
// starting at the bus address start.
func computeLayout(start cpu.Addr, bpl, h int) layout {
	size := bpl * h
	l := layout{size: size, h: h}

	l.head = int(cpu.AlignUp(start, gs.ImageUnit) - start)
	l.head = min(l.head, size)
	l.tail = (size - l.head) % gs.ImageUnit
	l.dma = size - l.head - l.tail

	if l.tail != 0 || l.dma == 0 {
		// lines are padded until bpl*h is a multiple of 16
		mask := 15
		for a := bpl; a%2 == 0 && a != 0; a >>= 1 {
			if mask >>= 1; mask == 0 {
				break
			}
		}
		l.h = (h + mask) &^ mask
		tfrlen := bpl * l.h
		if l.tail == 0 {
			l.headDummy = (tfrlen - l.head) >> 4
		} else {
			l.tailDummy = (tfrlen - l.dma - l.head - l.tail) >> 4
		}
	}
	debug.Assert(l.head+l.dma+l.tail == size, "gsimage: layout doesn't cover image")
	debug.Assert(l.headDummy >= 0 && l.tailDummy >= 0, "gsimage: negative dummy count")
	return l
}

// quads returns the number of quad words the GS sends for the layout.
func (l layout) quads() int {
	return cpu.QWC(l.head) + l.headDummy + l.dma/cpu.QWordSize + cpu.QWC(l.tail) + l.tailDummy
}

// trimChain returns the part of chain left for DMA after removing headQWC
// quad words from its start and tailQWC from its end. The result is a fresh
// chain terminated by dma.EndTag. Zero length tags are dropped.
func trimChain(chain []dma.Tag, headQWC, tailQWC int) []dma.Tag {
	end := dma.ChainQWC(chain) - tailQWC
	trimmed := make([]dma.Tag, 0, len(chain))
	off := 0
	for _, t := range chain {
		if t.ID == dma.TagEnd && t.QWC == 0 {
			break
		}
		qwc := int(t.QWC)
		lo, hi := max(off, headQWC), min(off+qwc, end)
		if lo < hi {
			t.Addr += cpu.Addr((lo - off) * cpu.QWordSize)
			t.QWC = uint32(hi - lo)
			trimmed = append(trimmed, t)
		}
		off += qwc
	}
	return append(trimmed, dma.EndTag)
}
