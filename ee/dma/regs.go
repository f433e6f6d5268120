package dma

import (
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// ChannelID enumerates the DMAC channels.
type ChannelID int

const (
	VIF0 ChannelID = iota
	VIF1
	GIF
	FromIPU
	ToIPU
	SIF0
	SIF1
	SIF2
	FromSPR
	ToSPR

	NumChannels
)

var channelNames = [NumChannels]string{
	"vif0", "vif1", "gif", "fromipu", "toipu",
	"sif0", "sif1", "sif2", "fromspr", "tospr",
}

func (id ChannelID) String() string {
	if id < 0 || id >= NumChannels {
		return "invalid"
	}
	return channelNames[id]
}

var channelBase = [NumChannels]cpu.Addr{
	0x1000_8000, 0x1000_9000, 0x1000_a000, 0x1000_b000, 0x1000_b400,
	0x1000_c000, 0x1000_c400, 0x1000_c800, 0x1000_d000, 0x1000_d400,
}

// Base returns the bus address of the channel's register block.
func (id ChannelID) Base() cpu.Addr { return channelBase[id] }

// IRQ returns the completion interrupt of the channel.
func (id ChannelID) IRQ() ee.IRQ { return ee.IrqDMAVIF0 + ee.IRQ(id) }

// Reg selects a register within a channel's block.
type Reg cpu.Addr

const (
	CHCR Reg = 0x00
	MADR Reg = 0x10
	QWC  Reg = 0x20
	TADR Reg = 0x30
	ASR0 Reg = 0x40
	ASR1 Reg = 0x50
	SADR Reg = 0x80
)

// ChannelControl is the layout of the CHCR register.
type ChannelControl uint32

const (
	DirFromMemory ChannelControl = 1 << 0 // 0: to memory

	ModeNormal     ChannelControl = 0 << 2
	ModeChain      ChannelControl = 1 << 2
	ModeInterleave ChannelControl = 2 << 2
	ModeMask       ChannelControl = 3 << 2

	TagTransfer  ChannelControl = 1 << 6 // TTE
	TagInterrupt ChannelControl = 1 << 7 // TIE
	Start        ChannelControl = 1 << 8 // STR
)

// Commonly used CHCR values.
const (
	SendNormal = Start | ModeNormal | DirFromMemory // CHCR_SENDN
	RecvNormal = Start | ModeNormal                 // CHCR_RECVN
	SendChain  = Start | ModeChain | DirFromMemory  // CHCR_SENDC
)

// DMAC global registers
const (
	DCtrl    cpu.Addr = 0x1000_e000
	DStat    cpu.Addr = 0x1000_e010
	DPcr     cpu.Addr = 0x1000_e020
	DEnableR cpu.Addr = 0x1000_f520
	DEnableW cpu.Addr = 0x1000_f590
)

// Suspend bit of D_ENABLER/D_ENABLEW, holds all channels.
const EnableSuspend = 1 << 16

type registers struct {
	chcr ee.Reg32[ChannelControl]
	madr ee.Reg32[cpu.Addr]
	qwc  ee.Reg32[uint32]
	tadr ee.Reg32[cpu.Addr]
}

func newRegisters(bus ee.Bus, base cpu.Addr) registers {
	return registers{
		chcr: ee.NewReg32[ChannelControl](bus, base+cpu.Addr(CHCR)),
		madr: ee.NewReg32[cpu.Addr](bus, base+cpu.Addr(MADR)),
		qwc:  ee.NewReg32[uint32](bus, base+cpu.Addr(QWC)),
		tadr: ee.NewReg32[cpu.Addr](bus, base+cpu.Addr(TADR)),
	}
}
