// Package devmem accesses the Emotion Engine's registers and DMA memory
// through a mapping of /dev/mem. It's the hardware backend of the gsimage
// tool on PS2 Linux.
//
// The kernel owns the EE interrupts, so completions are found by polling
// the status registers instead, see Poll.
package devmem

import (
	"errors"
	"fmt"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

const DefaultPath = "/dev/mem"

var (
	ErrUnsupported = errors.New("devmem: not supported on this platform")
	ErrUnmapped    = errors.New("devmem: address not mapped")
)

// Window is a physical address range to map.
type Window struct {
	Phys cpu.Addr
	Size int
}

// Windows covering the registers used by the image transfer driver.
var (
	EERegs = Window{Phys: 0x1000_0000, Size: 0x1_0000}
	GSRegs = Window{Phys: 0x1200_0000, Size: 0x2000}
)

type mapping struct {
	phys cpu.Addr
	mem  []byte
}

func (m *Mem) lookup(addr cpu.Addr, n int) ([]byte, error) {
	for _, mp := range m.maps {
		if addr >= mp.phys && int(addr-mp.phys)+n <= len(mp.mem) {
			off := int(addr - mp.phys)
			return mp.mem[off : off+n], nil
		}
	}
	return nil, fmt.Errorf("%w: 0x%08x+0x%x", ErrUnmapped, uint32(addr), n)
}

// Bytes returns the mapped memory at addr. It's used as the backing of a
// mem.Arena.
func (m *Mem) Bytes(addr cpu.Addr, n int) ([]byte, error) {
	return m.lookup(addr, n)
}

func (m *Mem) reg(addr cpu.Addr, n int) []byte {
	b, err := m.lookup(addr, n)
	if err != nil {
		panic(err)
	}
	return b
}

var _ ee.Bus = (*Mem)(nil)
