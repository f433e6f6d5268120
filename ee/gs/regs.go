package gs

import (
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// Register is the address of a general purpose GS register, as used in A+D
// packets.
type Register uint64

const (
	PRIM      Register = 0x00
	TEX0_1    Register = 0x06
	BITBLTBUF Register = 0x50
	TRXPOS    Register = 0x51
	TRXREG    Register = 0x52
	TRXDIR    Register = 0x53
	HWREG     Register = 0x54
	SIGNAL    Register = 0x60
	FINISH    Register = 0x61
	LABEL     Register = 0x62
)

// Privileged registers
const (
	PrivBase1 cpu.Addr = 0x1200_0000
	PrivBase2 cpu.Addr = 0x1200_1000

	CSR      = PrivBase2 + 0x00
	IMR      = PrivBase2 + 0x10
	BUSDIR   = PrivBase2 + 0x40
	SIGLBLID = PrivBase2 + 0x80
)

// CSRFlags is the layout of the CSR register.
type CSRFlags uint64

const (
	CSRSignal CSRFlags = 1 << 0
	CSRFinish CSRFlags = 1 << 1
	CSRHSync  CSRFlags = 1 << 2
	CSRVSync  CSRFlags = 1 << 3
	CSREDW    CSRFlags = 1 << 4
	CSRFlush  CSRFlags = 1 << 8 // resets the host interface FIFO
	CSRReset  CSRFlags = 1 << 9
)

// BusDirection selects the direction of the host interface.
type BusDirection uint64

const (
	HostToLocal BusDirection = 0
	LocalToHost BusDirection = 1
)

// Transmission directions of TRXDIR
const (
	XDirHostToLocal = 0
	XDirLocalToHost = 1
)

// Regs gives access to the privileged registers used by image transfers.
type Regs struct {
	CSR    ee.Reg64[CSRFlags]
	BusDir ee.Reg64[BusDirection]
}

func NewRegs(bus ee.Bus) *Regs {
	return &Regs{
		CSR:    ee.NewReg64[CSRFlags](bus, CSR),
		BusDir: ee.NewReg64[BusDirection](bus, BUSDIR),
	}
}
