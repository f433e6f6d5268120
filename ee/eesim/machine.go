// Package eesim simulates the parts of the Emotion Engine and the Graphics
// Synthesizer involved in image transfers: the DMAC channels, the GIF and
// VIF1 packet paths, the GS host interface and a linear model of GS local
// memory.
//
// Hardware completes transfers and raises interrupts on a single dispatcher
// goroutine, so interrupt handlers never run concurrently with each other,
// like on the real CPU. Bus accesses are safe from any goroutine.
package eesim

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/ee/vif"
)

// Memory resolves physical addresses of DMA memory.
type Memory interface {
	Virt(addr cpu.Addr, n int) ([]byte, error)
}

// Faults modify how the simulated hardware behaves.
type Faults struct {
	// DropFinish suppresses the GS FINISH interrupt.
	DropFinish bool

	// FinishFirst raises FINISH before the completion of the VIF1 transfer
	// that carried it.
	FinishFirst bool

	// StallRecv keeps VIF1 receive transfers from ever completing.
	StallRecv bool
}

// Stats counts events of interest to tests.
type Stats struct {
	Writes      int // register stores of any width
	ForceBreaks [dma.NumChannels]int
	GSResets    int // CSR FLUSH writes
	FIFOResets  int // VIF1 FBRST FIFO resets
	Underflows  int // VIF1 FIFO reads without data
	Stalls      int // transfers that will never complete
	Finishes    int // FINISH events signalled
}

// Machine implements ee.Bus.
type Machine struct {
	Intc *ee.Intc

	log *logrus.Logger
	mem Memory
	irq *dispatcher

	mtx    sync.Mutex
	regs   map[cpu.Addr]uint64
	gen    [dma.NumChannels]uint64 // transfer generation per channel
	faults Faults
	stats  Stats
	gs     gsState
}

var _ ee.Bus = (*Machine)(nil)

// New creates a simulated machine executing DMA from and to mem. Interrupts
// are raised on intc.
func New(mem Memory, intc *ee.Intc, log *logrus.Logger) *Machine {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	m := &Machine{
		Intc: intc,
		log:  log,
		mem:  mem,
		irq:  newDispatcher(),
		regs: make(map[cpu.Addr]uint64),
	}
	m.gs.vram = make([]byte, VRAMSize)
	go m.irq.run()
	return m
}

// Close stops the dispatcher. Pending events are dropped.
func (m *Machine) Close() {
	m.irq.close()
}

// SetFaults replaces the active faults.
func (m *Machine) SetFaults(f Faults) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.faults = f
}

// Stats returns a snapshot of the event counters.
func (m *Machine) Stats() Stats {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.stats
}

// Idle blocks until no transfer or interrupt is outstanding. Stalled
// transfers don't count.
func (m *Machine) Idle() {
	m.irq.wait()
}

func (m *Machine) Load32(addr cpu.Addr) uint32 {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	switch addr {
	case vif.VIF1Stat:
		return uint32(m.vifStat())
	}
	return uint32(m.regs[addr])
}

func (m *Machine) Store32(addr cpu.Addr, v uint32) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.stats.Writes++

	switch addr {
	case dma.DEnableW:
		m.regs[dma.DEnableR] = uint64(v)
	case dma.DStat:
		m.regs[dma.DStat] &^= uint64(v)
		return
	case vif.VIF1Stat:
		v &= uint32(vif.StatFDR)
	case vif.VIF1FBRST:
		if vif.Reset(v)&vif.ResetFIFO != 0 {
			m.stats.FIFOResets++
			m.gs.resetOutput()
		}
		return
	}
	if id, ok := chcrChannel(addr); ok {
		m.storeCHCR(id, dma.ChannelControl(v))
		return
	}
	m.regs[addr] = uint64(v)
}

func (m *Machine) Load64(addr cpu.Addr) uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.regs[addr]
}

func (m *Machine) Store64(addr cpu.Addr, v uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.stats.Writes++

	switch addr {
	case gs.CSR:
		csr := gs.CSRFlags(v)
		if csr&gs.CSRFlush != 0 {
			m.stats.GSResets++
			m.gs.resetOutput()
		}
		// event bits are cleared by writing one
		m.regs[addr] &^= uint64(csr & (gs.CSRSignal | gs.CSRFinish | gs.CSRHSync | gs.CSRVSync | gs.CSREDW))
		return
	}
	m.regs[addr] = v
}

func (m *Machine) LoadQuad(addr cpu.Addr) ee.Quad {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if addr == vif.VIF1FIFO {
		if !m.hostReadable() {
			m.stats.Underflows++
			return ee.Quad{}
		}
		q, ok := m.gs.pop()
		if !ok {
			m.stats.Underflows++
		}
		return q
	}
	return ee.Quad{m.regs[addr], m.regs[addr+8]}
}

func (m *Machine) StoreQuad(addr cpu.Addr, v ee.Quad) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.stats.Writes++
	m.regs[addr], m.regs[addr+8] = v[0], v[1]
}

// hostReadable reports whether the GS output is visible in the VIF1 FIFO.
func (m *Machine) hostReadable() bool {
	return vif.Status(m.regs[vif.VIF1Stat])&vif.StatFDR != 0 &&
		gs.BusDirection(m.regs[gs.BUSDIR]) == gs.LocalToHost
}

func (m *Machine) vifStat() vif.Status {
	stat := vif.Status(m.regs[vif.VIF1Stat])
	if m.hostReadable() {
		fqc := min(m.gs.pending(), 16)
		stat |= vif.Status(fqc) << 24
	}
	return stat
}

// raise latches irq and delivers it from the dispatcher.
func (m *Machine) raise(irq ee.IRQ) {
	if irq >= ee.IrqDMAVIF0 && irq <= ee.IrqDMAToSPR {
		m.regs[dma.DStat] |= 1 << uint(irq-ee.IrqDMAVIF0)
	}
	m.irq.post(func() {
		if !m.Intc.Handled(irq) {
			m.log.WithField("irq", irq).Debug("eesim: unhandled interrupt")
			return
		}
		m.Intc.Raise(irq)
	})
}
