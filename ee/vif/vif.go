// Package vif has the VIF codes and VIF1 registers needed to drive the GS host
// interface through PATH2.
package vif

import (
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// Code is a 32-bit VIF code.
type Code uint32

const (
	CmdNOP      = 0x00
	CmdMSKPATH3 = 0x06
	CmdFLUSHA   = 0x13
	CmdDIRECT   = 0x50
)

func NOP() Code              { return CmdNOP << 24 }
func FlushA() Code           { return CmdFLUSHA << 24 }
func Direct(qwc uint16) Code { return CmdDIRECT<<24 | Code(qwc) }

// MaskPath3 masks or unmasks GIF PATH3 transfers.
func MaskPath3(mask bool) Code {
	if mask {
		return CmdMSKPATH3<<24 | 0x8000
	}
	return CmdMSKPATH3 << 24
}

// VIF1 registers
const (
	VIF1Base  cpu.Addr = 0x1000_3c00
	VIF1Stat           = VIF1Base + 0x00
	VIF1FBRST          = VIF1Base + 0x10
	VIF1FIFO  cpu.Addr = 0x1000_5000
)

// Status is the layout of VIF1_STAT.
type Status uint32

const (
	StatFDR Status = 1 << 23 // FIFO direction, set for VIF1 to host
	StatFQC Status = 0x1f << 24
)

// FIFOCount returns the number of quad words in the FIFO.
func (s Status) FIFOCount() int { return int(s&StatFQC) >> 24 }

// Reset flags of VIF1_FBRST
type Reset uint32

const (
	ResetFIFO       Reset = 1 << 0
	ResetForceBreak Reset = 1 << 1
	ResetStall      Reset = 1 << 2
	ResetCancel     Reset = 1 << 3
)

// Regs is the VIF1 register block.
type Regs struct {
	Stat  ee.Reg32[Status]
	FBRST ee.Reg32[Reset]
	bus   ee.Bus
}

func NewRegs(bus ee.Bus) *Regs {
	return &Regs{
		Stat:  ee.NewReg32[Status](bus, VIF1Stat),
		FBRST: ee.NewReg32[Reset](bus, VIF1FBRST),
		bus:   bus,
	}
}

// Pop reads a single quad word from the VIF1 FIFO.
func (r *Regs) Pop() ee.Quad {
	return r.bus.LoadQuad(VIF1FIFO)
}
