package testing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/eesim"
	"github.com/clktmr/ps2/ee/mem"
)

// ArenaBase is the physical address of simulated DMA memory.
const ArenaBase = cpu.Addr(0x0100_0000)

// Machine bundles a simulated EE with its DMA memory and controller.
type Machine struct {
	Arena   *mem.Arena
	Backing []byte
	SPR     []byte
	Intc    *ee.Intc
	Sim     *eesim.Machine
	DMAC    *dma.Controller
}

// NewMachine simulates an EE with pages of DMA memory and a scratchpad. It's
// shut down when the test ends.
func NewMachine(t testing.TB, pages int) *Machine {
	t.Helper()

	backing := cpu.MakeAlignedBytes(pages*cpu.PageSize, cpu.PageSize)
	arena, err := mem.NewArena(ArenaBase, backing)
	require.NoError(t, err)
	spr := cpu.MakeAlignedBytes(cpu.SPRSize, cpu.QWordSize)
	arena.SetScratchpad(spr)

	intc := ee.NewIntc()
	sim := eesim.New(arena, intc, NewLogger())
	t.Cleanup(sim.Close)

	return &Machine{
		Arena:   arena,
		Backing: backing,
		SPR:     spr,
		Intc:    intc,
		Sim:     sim,
		DMAC:    dma.NewController(sim, intc, 0),
	}
}

// Kernel allocates size bytes of DMA memory starting skew bytes after a page
// boundary. The memory is freed when the test ends.
func (m *Machine) Kernel(t testing.TB, skew, size int) []byte {
	t.Helper()
	blk, err := m.Arena.Alloc(skew + size)
	require.NoError(t, err)
	t.Cleanup(blk.Free)
	return blk.Bytes[skew : skew+size]
}
