package eesim

import (
	"encoding/binary"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/ee/vif"
)

// maxChainTags bounds chain walks, so a looping chain stalls instead of
// hanging the dispatcher.
const maxChainTags = 1 << 16

// xfer is a channel's register state captured when its transfer started.
type xfer struct {
	id   dma.ChannelID
	gen  uint64
	chcr dma.ChannelControl
	madr cpu.Addr
	qwc  int
	tadr cpu.Addr
}

func chcrChannel(addr cpu.Addr) (dma.ChannelID, bool) {
	for id := range dma.NumChannels {
		if addr == id.Base()+cpu.Addr(dma.CHCR) {
			return id, true
		}
	}
	return 0, false
}

func (m *Machine) chreg(id dma.ChannelID, reg dma.Reg) cpu.Addr {
	return id.Base() + cpu.Addr(reg)
}

// storeCHCR is called with m.mtx held.
func (m *Machine) storeCHCR(id dma.ChannelID, v dma.ChannelControl) {
	addr := m.chreg(id, dma.CHCR)
	old := dma.ChannelControl(m.regs[addr])
	m.regs[addr] = uint64(v)

	if v&dma.Start == 0 {
		if m.regs[dma.DEnableR]&dma.EnableSuspend != 0 {
			m.stats.ForceBreaks[id]++
		}
		if old&dma.Start != 0 {
			m.gen[id]++
		}
		return
	}

	m.gen[id]++
	x := xfer{
		id:   id,
		gen:  m.gen[id],
		chcr: v,
		madr: cpu.Addr(m.regs[m.chreg(id, dma.MADR)]),
		qwc:  int(m.regs[m.chreg(id, dma.QWC)] & 0xffff),
		tadr: cpu.Addr(m.regs[m.chreg(id, dma.TADR)]),
	}
	m.irq.post(func() { m.transfer(x) })
}

// transfer executes x on the dispatcher.
func (m *Machine) transfer(x xfer) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.gen[x.id] != x.gen {
		return // aborted
	}

	var ok bool
	switch {
	case x.id == dma.GIF:
		if x.chcr&dma.ModeMask == dma.ModeChain {
			ok = m.sendChain(x.tadr, m.gs.feed)
		} else {
			ok = m.sendNormal(x, m.gs.feed)
		}
	case x.id == dma.VIF1 && x.chcr&dma.DirFromMemory != 0:
		ok = m.sendNormal(x, m.vifcodes)
	case x.id == dma.VIF1:
		ok = m.recv(x)
	default:
		ok = true
	}
	if !ok {
		m.stats.Stalls++
		m.log.WithField("channel", x.id).Debug("eesim: transfer stalled")
		return
	}

	m.regs[m.chreg(x.id, dma.CHCR)] &^= uint64(dma.Start)
	m.regs[m.chreg(x.id, dma.MADR)] = uint64(x.madr) + uint64(x.qwc*cpu.QWordSize)
	m.regs[m.chreg(x.id, dma.QWC)] = 0

	finish := m.gs.finish && !m.faults.DropFinish
	if m.gs.finish {
		m.gs.finish = false
		m.regs[gs.CSR] |= uint64(gs.CSRFinish)
	}
	if finish && m.faults.FinishFirst {
		m.stats.Finishes++
		m.raise(ee.IrqGSFinish)
		finish = false
	}
	m.raise(x.id.IRQ())
	if finish {
		m.stats.Finishes++
		m.raise(ee.IrqGSFinish)
	}
}

func (m *Machine) sendNormal(x xfer, sink func([]byte) bool) bool {
	if x.qwc == 0 {
		return true
	}
	p, err := m.mem.Virt(x.madr, x.qwc*cpu.QWordSize)
	if err != nil {
		m.log.WithError(err).WithField("channel", x.id).Warn("eesim: bad transfer address")
		return false
	}
	return sink(p)
}

func (m *Machine) sendChain(tadr cpu.Addr, sink func([]byte) bool) bool {
	for range maxChainTags {
		b, err := m.mem.Virt(tadr, cpu.QWordSize)
		if err != nil {
			m.log.WithError(err).Warn("eesim: bad tag address")
			return false
		}
		tag := dma.DecodeTag(binary.LittleEndian.Uint64(b))

		data, next := tadr+cpu.QWordSize, tadr+cpu.QWordSize
		end := false
		switch tag.ID {
		case dma.TagCnt:
			next = data + cpu.Addr(tag.Bytes())
		case dma.TagNext:
			next = tag.Addr
		case dma.TagRef, dma.TagRefs:
			data = tag.Addr
		case dma.TagRefe:
			data, end = tag.Addr, true
		case dma.TagEnd:
			end = true
		default:
			m.log.WithField("tag", tag).Warn("eesim: unsupported tag")
			return false
		}

		if tag.QWC > 0 {
			p, err := m.mem.Virt(data, tag.Bytes())
			if err != nil {
				m.log.WithError(err).WithField("tag", tag).Warn("eesim: bad tag")
				return false
			}
			if !sink(p) {
				return false
			}
		}
		if end {
			return true
		}
		tadr = next
	}
	return false
}

// vifcodes interprets a VIF1 packet. DIRECT data is passed to the GS.
func (m *Machine) vifcodes(p []byte) bool {
	for i := 0; i+4 <= len(p); {
		code := vif.Code(binary.LittleEndian.Uint32(p[i:]))
		i += 4
		switch code >> 24 {
		case vif.CmdNOP, vif.CmdFLUSHA:
		case vif.CmdMSKPATH3:
			m.gs.path3Masked = code&0x8000 != 0
		case vif.CmdDIRECT:
			n := int(code & 0xffff)
			if n == 0 {
				n = 0x10000
			}
			i = cpu.AlignUp(i, cpu.QWordSize)
			end := i + n*cpu.QWordSize
			if end > len(p) {
				m.log.WithField("code", code).Warn("eesim: truncated DIRECT")
				return false
			}
			if !m.gs.feed(p[i:end]) {
				return false
			}
			i = end
		default:
			m.log.Warnf("eesim: unsupported vifcode 0x%08x", uint32(code))
			return false
		}
	}
	return true
}

// recv moves GS output from the VIF1 FIFO to memory. The host interface
// moves data in units of eight quad words.
func (m *Machine) recv(x xfer) bool {
	if m.faults.StallRecv || !m.hostReadable() {
		return false
	}
	if x.qwc%8 != 0 || m.gs.pending() < x.qwc {
		return false
	}
	p, err := m.mem.Virt(x.madr, x.qwc*cpu.QWordSize)
	if err != nil {
		m.log.WithError(err).Warn("eesim: bad receive address")
		return false
	}
	for i := 0; i < len(p); i += cpu.QWordSize {
		q, _ := m.gs.pop()
		q.PutBytes(p[i:])
	}
	return true
}
