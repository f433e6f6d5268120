package mem_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/mem"
)

const arenaBase = cpu.Addr(0x0100_0000)

func newArena(t *testing.T, pages int) (*mem.Arena, []byte) {
	backing := cpu.MakeAlignedBytes(pages*cpu.PageSize, cpu.PageSize)
	a, err := mem.NewArena(arenaBase, backing)
	require.NoError(t, err)
	return a, backing
}

func TestNewArenaAlignment(t *testing.T) {
	_, err := mem.NewArena(0x100, cpu.MakeAlignedBytes(cpu.PageSize, 16))
	assert.Error(t, err)
	_, err = mem.NewArena(0, cpu.MakeAlignedBytes(100, 16))
	assert.Error(t, err)
}

func TestAllocFree(t *testing.T) {
	a, _ := newArena(t, 4)

	b1, err := a.Alloc(100)
	require.NoError(t, err)
	assert.Len(t, b1.Bytes, 100)
	assert.Equal(t, arenaBase, b1.Addr)

	b2, err := a.Alloc(2 * cpu.PageSize)
	require.NoError(t, err)
	assert.Equal(t, arenaBase+cpu.PageSize, b2.Addr)
	assert.Equal(t, 1, a.FreePages())

	_, err = a.Alloc(2 * cpu.PageSize)
	assert.ErrorIs(t, err, mem.ErrNoMemory)

	b1.Free()
	b1.Free() // no-op
	assert.Equal(t, 2, a.FreePages())

	// the two free pages aren't contiguous
	_, err = a.Alloc(2 * cpu.PageSize)
	assert.ErrorIs(t, err, mem.ErrNoMemory)

	b2.Free()
	assert.Equal(t, 4, a.FreePages())
}

func TestMakeTagsKernel(t *testing.T) {
	a, backing := newArena(t, 4)
	p := backing[0x40 : 0x40+0x1800]

	class, chain, pl, err := a.MakeTags(p, 0x1800)
	require.NoError(t, err)
	assert.Equal(t, mem.KernelMemory, class)
	assert.Nil(t, pl)
	assert.Equal(t, []dma.Tag{
		{ID: dma.TagRef, Addr: arenaBase + 0x40, QWC: 0x180},
		dma.EndTag,
	}, chain)
}

func TestMakeTagsUnalignedKernelIsStaged(t *testing.T) {
	a, backing := newArena(t, 4)
	class, _, pl, err := a.MakeTags(backing[4:36], 32)
	require.NoError(t, err)
	assert.Equal(t, mem.UserMemory, class)
	require.NotNil(t, pl)
	a.Release(pl)
	assert.Equal(t, 4, a.FreePages())
}

func TestMakeTagsScratchpad(t *testing.T) {
	a, _ := newArena(t, 1)
	spr := cpu.MakeAlignedBytes(cpu.SPRSize, 16)
	a.SetScratchpad(spr)

	class, chain, _, err := a.MakeTags(spr[0x100:0x200], 0x100)
	require.NoError(t, err)
	assert.Equal(t, mem.ScratchpadMemory, class)
	assert.Equal(t, cpu.SPRAddr|0x100, chain[0].Addr)
	assert.True(t, chain[0].Addr.IsSPR())

	b, err := a.Virt(chain[0].Addr, 0x100)
	require.NoError(t, err)
	b[0] = 0xaa
	assert.Equal(t, byte(0xaa), spr[0x100])
}

func TestMakeTagsUser(t *testing.T) {
	a, _ := newArena(t, 8)

	// fragment the arena so staging pages are discontiguous
	low, err := a.Alloc(6 * cpu.PageSize)
	require.NoError(t, err)
	_, err = a.Alloc(cpu.PageSize)
	require.NoError(t, err)
	low.Free()

	src := make([]byte, 3*cpu.PageSize+0x30)
	for i := range src {
		src[i] = byte(i * 7)
	}
	class, chain, pl, err := a.MakeTags(src, len(src))
	require.NoError(t, err)
	assert.Equal(t, mem.UserMemory, class)
	assert.Equal(t, len(src)/cpu.QWordSize, dma.ChainQWC(chain))
	assert.Equal(t, dma.EndTag, chain[len(chain)-1])
	require.Len(t, chain, 3)
	assert.Equal(t, uint32(3*cpu.PageSize/cpu.QWordSize), chain[0].QWC)
	assert.Equal(t, uint32(3), chain[1].QWC)

	require.NoError(t, a.CopyFromUser(pl, src))
	staged := make([]byte, 0, len(src))
	for _, tag := range chain[:len(chain)-1] {
		b, err := a.Virt(tag.Addr, tag.Bytes())
		require.NoError(t, err)
		staged = append(staged, b...)
	}
	assert.True(t, bytes.Equal(src, staged))

	dst := make([]byte, len(src))
	require.NoError(t, a.CopyToUser(dst, pl))
	assert.True(t, bytes.Equal(src, dst))

	a.Release(pl)
	assert.Equal(t, 7, a.FreePages())
}

func TestMakeTagsOutOfMemory(t *testing.T) {
	a, _ := newArena(t, 1)
	_, _, _, err := a.MakeTags(make([]byte, 2*cpu.PageSize), 2*cpu.PageSize)
	assert.ErrorIs(t, err, mem.ErrNoMemory)
	assert.Equal(t, 1, a.FreePages())
}

func TestMakeTagsSplitsLongRuns(t *testing.T) {
	pages := (dma.MaxQWC*cpu.QWordSize)/cpu.PageSize + 2
	a, backing := newArena(t, pages)
	size := len(backing)
	_, chain, _, err := a.MakeTags(backing, size)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, uint32(dma.MaxQWC), chain[0].QWC)
	assert.Equal(t, size/cpu.QWordSize, dma.ChainQWC(chain))
}

func TestVirtFault(t *testing.T) {
	a, _ := newArena(t, 1)
	_, err := a.Virt(arenaBase+cpu.PageSize-8, 16)
	assert.ErrorIs(t, err, mem.ErrFault)
	_, err = a.Virt(arenaBase-16, 16)
	assert.ErrorIs(t, err, mem.ErrFault)
}
