// Package gs describes the Graphics Synthesizer as seen from the host: its
// pixel storage modes, registers and the GIF packets used to talk to it.
package gs

import (
	"encoding/binary"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// ImageUnit is the alignment the host interface needs for image data moved by
// DMA from the GS, in bytes.
const ImageUnit = 8 * cpu.QWordSize

// GIF tag data formats
type Flag uint64

const (
	FlagPacked  Flag = 0
	FlagReglist Flag = 1
	FlagImage   Flag = 2
)

// RegsAD is the REGS field selecting A+D for every register descriptor.
const RegsAD = 0xe

// GIFTag returns the lower 64 bits of a GIF tag.
func GIFTag(nloop int, eop bool, flg Flag, nreg int) uint64 {
	debug.Assert(nloop >= 0 && nloop < 1<<15, "gs: nloop out of range")
	v := uint64(nloop) | uint64(flg)<<58 | uint64(nreg&0xf)<<60
	if eop {
		v |= 1 << 15
	}
	return v
}

// BitBltBuf encodes BITBLTBUF for a transfer to or from the buffer at fbp
// with width fbw. The destination fields are used for host to local
// transfers, the source fields for local to host.
func BitBltBuf(fbp, fbw uint32, psm PSM, dir int) uint64 {
	v := uint64(fbp&0x3fff) | uint64(fbw&0x3f)<<16 | uint64(psm&0x3f)<<24
	if dir == XDirHostToLocal {
		v <<= 32
	}
	return v
}

// TrxPos encodes TRXPOS with the rectangle's upper left corner.
func TrxPos(x, y int, dir int) uint64 {
	v := uint64(x&0x7ff) | uint64(y&0x7ff)<<16
	if dir == XDirHostToLocal {
		v <<= 32
	}
	return v
}

// TrxReg encodes TRXREG with the rectangle's size.
func TrxReg(w, h int) uint64 {
	return uint64(w&0xfff) | uint64(h&0xfff)<<32
}

// Packet writes quad words into a DMA buffer.
type Packet struct {
	buf []byte
	off int
}

// NewPacket writes into buf, which must be quad word aligned and sized.
func NewPacket(buf []byte) *Packet {
	debug.Assert(len(buf)%cpu.QWordSize == 0, "gs: packet buffer not padded")
	return &Packet{buf: buf}
}

// Put appends a quad word given as lower and upper half.
func (p *Packet) Put(lo, hi uint64) {
	binary.LittleEndian.PutUint64(p.buf[p.off:], lo)
	binary.LittleEndian.PutUint64(p.buf[p.off+8:], hi)
	p.off += cpu.QWordSize
}

// PutQuad appends q.
func (p *Packet) PutQuad(q ee.Quad) {
	p.Put(q[0], q[1])
}

// PutAD appends an A+D register write.
func (p *Packet) PutAD(reg Register, data uint64) {
	p.Put(data, uint64(reg))
}

// PutWords appends four 32-bit words, e.g. VIF codes.
func (p *Packet) PutWords(w [4]uint32) {
	for i, v := range w {
		binary.LittleEndian.PutUint32(p.buf[p.off+4*i:], v)
	}
	p.off += cpu.QWordSize
}

// QWC returns the number of quad words written.
func (p *Packet) QWC() int { return p.off / cpu.QWordSize }

// Bytes returns the written part of the buffer.
func (p *Packet) Bytes() []byte { return p.buf[:p.off] }
