// Package cpu describes the Emotion Engine's view of memory: physical bus
// addresses, the kernel segments and the alignment rules that every DMA
// capable buffer must follow.
package cpu

// The CPU's clock speed
const ClockSpeed = 294.912e6

// Memory regions in 32bit Kernel mode
const (
	KSEG0 uint32 = 0x8000_0000 // unmapped, cached
	KSEG1 uint32 = 0xa000_0000 // unmapped, uncached
)

const (
	// QWordSize is the DMA transfer unit. Addresses and lengths programmed
	// into a DMA channel are always expressed in quad words.
	QWordSize = 16

	// PageSize is the granularity in which DMA memory is handed out.
	PageSize  = 4096
	PageShift = 12

	// SPRSize is the size of the scratchpad RAM.
	SPRSize = 16 * 1024
)

// Addr represents a physical memory address as seen by the DMA controller.
type Addr uint32

// SPRAddr marks scratchpad addresses in DMA tags. The scratchpad has no
// physical address, the DMAC selects it with the most significant bit.
const SPRAddr Addr = 0x8000_0000

// PhysicalAddress returns the physical address of a virtual address in KSEG0 or
// KSEG1.
func PhysicalAddress(addr uint32) Addr {
	return Addr(addr & 0x1fff_ffff)
}

// IsSPR reports whether a refers to the scratchpad.
func (a Addr) IsSPR() bool {
	return a&SPRAddr != 0
}

// QWC returns the number of quad words needed to hold n bytes.
func QWC(n int) int {
	return (n + QWordSize - 1) / QWordSize
}
