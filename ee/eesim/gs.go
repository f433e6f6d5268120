package eesim

import (
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/gs"
)

// VRAMSize is the size of GS local memory.
const VRAMSize = 4 << 20

// blockSize is the unit of buffer base pointers (BP fields).
const blockSize = 256

// Rect is a rectangle in a GS buffer. The simulated local memory is linear,
// pixels are not swizzled.
type Rect struct {
	BP, BW uint32
	PSM    gs.PSM
	X, Y   int
	W, H   int
}

func (r Rect) bpl() int { return r.W * r.PSM.BitsPerPixel() / 8 }

// offset returns the local memory offset of the first pixel in row.
func (r Rect) offset(row int) int {
	return int(r.BP)*blockSize + ((r.Y+row)*int(r.BW)*64+r.X)*r.PSM.BitsPerPixel()/8
}

// gsState models the GS host interface. It's guarded by Machine.mtx.
type gsState struct {
	vram []byte

	bitbltbuf, trxpos, trxreg uint64

	// GIF tag in progress
	flg    gs.Flag
	nreg   int
	regs   uint64
	remain int
	index  int

	// host to local transfer in progress
	in    *Rect
	inOff int

	// local to host output not read yet
	out  []byte
	outp int

	finish      bool
	path3Masked bool
}

// feed parses GIF packets.
func (g *gsState) feed(p []byte) bool {
	for i := 0; i+cpu.QWordSize <= len(p); i += cpu.QWordSize {
		q := ee.QuadFromBytes(p[i:])
		if g.remain == 0 {
			g.tag(q)
			continue
		}
		switch g.flg {
		case gs.FlagPacked:
			desc := (g.regs >> (4 * uint(g.index%g.nreg))) & 0xf
			if desc == gs.RegsAD {
				g.write(gs.Register(q[1]&0xff), q[0])
			}
		case gs.FlagImage:
			g.image(p[i : i+cpu.QWordSize])
		}
		g.index++
		g.remain--
	}
	return true
}

func (g *gsState) tag(q ee.Quad) {
	nloop := int(q[0] & 0x7fff)
	g.flg = gs.Flag(q[0]>>58) & 3
	g.nreg = int(q[0] >> 60)
	if g.nreg == 0 {
		g.nreg = 16
	}
	g.regs = q[1]
	g.index = 0
	switch g.flg {
	case gs.FlagPacked:
		g.remain = nloop * g.nreg
	case gs.FlagReglist:
		g.remain = (nloop*g.nreg + 1) / 2
	default:
		g.remain = nloop
	}
}

func (g *gsState) write(reg gs.Register, v uint64) {
	switch reg {
	case gs.BITBLTBUF:
		g.bitbltbuf = v
	case gs.TRXPOS:
		g.trxpos = v
	case gs.TRXREG:
		g.trxreg = v
	case gs.FINISH:
		g.finish = true
	case gs.TRXDIR:
		w, h := int(g.trxreg&0xfff), int((g.trxreg>>32)&0xfff)
		switch v & 3 {
		case gs.XDirHostToLocal:
			g.in = &Rect{
				BP: uint32(g.bitbltbuf>>32) & 0x3fff, BW: uint32(g.bitbltbuf>>48) & 0x3f,
				PSM: gs.PSM(g.bitbltbuf>>56) & 0x3f,
				X:   int(g.trxpos>>32) & 0x7ff, Y: int(g.trxpos>>48) & 0x7ff,
				W: w, H: h,
			}
			g.inOff = 0
		case gs.XDirLocalToHost:
			r := Rect{
				BP: uint32(g.bitbltbuf) & 0x3fff, BW: uint32(g.bitbltbuf>>16) & 0x3f,
				PSM: gs.PSM(g.bitbltbuf>>24) & 0x3f,
				X:   int(g.trxpos) & 0x7ff, Y: int(g.trxpos>>16) & 0x7ff,
				W: w, H: h,
			}
			g.out = g.read(r)
			g.outp = 0
		}
	}
}

func (g *gsState) image(p []byte) {
	for len(p) > 0 && g.in != nil {
		bpl := g.in.bpl()
		row, col := g.inOff/max(bpl, 1), g.inOff%max(bpl, 1)
		if bpl == 0 || row >= g.in.H {
			g.in = nil // excess data is dropped
			return
		}
		n := min(len(p), bpl-col)
		off := g.in.offset(row) + col
		if off >= 0 && off < len(g.vram) {
			copy(g.vram[off:], p[:n])
		}
		p = p[n:]
		g.inOff += n
	}
}

// read returns the rectangle's pixels, padded to whole quad words.
func (g *gsState) read(r Rect) []byte {
	bpl := r.bpl()
	out := make([]byte, cpu.AlignUp(bpl*r.H, cpu.QWordSize))
	for row := range r.H {
		off := r.offset(row)
		if off < 0 || off >= len(g.vram) {
			continue
		}
		copy(out[row*bpl:(row+1)*bpl], g.vram[off:])
	}
	return out
}

func (g *gsState) pending() int {
	return (len(g.out) - g.outp) / cpu.QWordSize
}

func (g *gsState) pop() (ee.Quad, bool) {
	if g.pending() == 0 {
		return ee.Quad{}, false
	}
	q := ee.QuadFromBytes(g.out[g.outp:])
	g.outp += cpu.QWordSize
	return q, true
}

func (g *gsState) resetOutput() {
	g.out, g.outp = nil, 0
}

// WriteVRAM fills r with pixels given in host memory layout.
func (m *Machine) WriteVRAM(r Rect, pix []byte) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	bpl := r.bpl()
	for row := 0; row < r.H && (row+1)*bpl <= len(pix); row++ {
		copy(m.gs.vram[r.offset(row):], pix[row*bpl:(row+1)*bpl])
	}
}

// ReadVRAM returns the pixels of r in host memory layout.
func (m *Machine) ReadVRAM(r Rect) []byte {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.gs.read(r)[:r.bpl()*r.H]
}

// Path3Masked reports whether the last MSKPATH3 masked PATH3.
func (m *Machine) Path3Masked() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.gs.path3Masked
}
