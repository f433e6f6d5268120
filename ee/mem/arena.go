// Package mem manages memory the DMA controller can reach and builds the tag
// chains describing it.
//
// An Arena is a physically contiguous region with a known bus address, handed
// out in pages. Buffers inside the arena can be transferred directly, any
// other Go memory is staged through arena pages first.
package mem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee/cpu"
)

var (
	ErrNoMemory = errors.New("mem: out of dma memory")
	ErrFault    = errors.New("mem: bad address")
)

// Arena hands out pages of a physically contiguous memory region.
//
// Arena is safe for concurrent use.
type Arena struct {
	base cpu.Addr
	mem  []byte
	spr  []byte

	mtx  sync.Mutex
	used []bool
	free int
}

// NewArena manages mem, which the DMA controller sees at the physical address
// base. Both base and len(mem) must be page aligned.
func NewArena(base cpu.Addr, mem []byte) (*Arena, error) {
	if !cpu.IsAligned(base, cpu.PageSize) || !cpu.IsAligned(len(mem), cpu.PageSize) {
		return nil, fmt.Errorf("mem: arena 0x%08x+0x%x not page aligned", uint32(base), len(mem))
	}
	if cpu.SliceAlignment(mem, cpu.QWordSize) != 0 {
		return nil, fmt.Errorf("mem: arena backing not quad word aligned")
	}
	pages := len(mem) >> cpu.PageShift
	return &Arena{
		base: base,
		mem:  mem,
		used: make([]bool, pages),
		free: pages,
	}, nil
}

// SetScratchpad registers the mapping of the scratchpad RAM, so buffers in it
// are recognized by MakeTags.
func (a *Arena) SetScratchpad(spr []byte) {
	debug.Assert(len(spr) <= cpu.SPRSize, "mem: scratchpad too large")
	a.spr = spr
}

// Base returns the physical address of the arena's first page.
func (a *Arena) Base() cpu.Addr { return a.base }

// Size returns the arena's size in bytes.
func (a *Arena) Size() int { return len(a.mem) }

// FreePages returns the number of unallocated pages.
func (a *Arena) FreePages() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.free
}

// Block is a physically contiguous allocation.
type Block struct {
	Addr  cpu.Addr
	Bytes []byte

	arena *Arena
	first int
	pages int
}

// Alloc returns a zeroed, page aligned block of at least size bytes.
func (a *Arena) Alloc(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mem: invalid allocation size %d", size)
	}
	n := cpu.AlignUp(size, cpu.PageSize) >> cpu.PageShift

	a.mtx.Lock()
	defer a.mtx.Unlock()

	run := 0
	for i := range a.used {
		if a.used[i] {
			run = 0
			continue
		}
		run++
		if run == n {
			first := i - n + 1
			a.mark(first, n, true)
			b := &Block{
				Addr:  a.base + cpu.Addr(first<<cpu.PageShift),
				Bytes: a.pageBytes(first, n)[:size],
				arena: a,
				first: first,
				pages: n,
			}
			clear(b.Bytes)
			return b, nil
		}
	}
	return nil, ErrNoMemory
}

// Free returns the block's pages to the arena. Free on a nil block is a no-op.
func (b *Block) Free() {
	if b == nil || b.arena == nil {
		return
	}
	a := b.arena
	a.mtx.Lock()
	a.mark(b.first, b.pages, false)
	a.mtx.Unlock()
	b.arena = nil
}

// PageList is a set of possibly discontiguous pages, used to stage buffers
// that live outside of DMA memory.
type PageList struct {
	arena *Arena
	pages []int
	size  int
}

// AllocPages returns zeroed pages for size bytes. The pages are not
// necessarily contiguous.
func (a *Arena) AllocPages(size int) (*PageList, error) {
	n := cpu.AlignUp(size, cpu.PageSize) >> cpu.PageShift

	a.mtx.Lock()
	defer a.mtx.Unlock()

	if n > a.free {
		return nil, ErrNoMemory
	}
	pl := &PageList{arena: a, pages: make([]int, 0, n), size: size}
	for i := len(a.used) - 1; i >= 0 && len(pl.pages) < n; i-- {
		if !a.used[i] {
			pl.pages = append(pl.pages, i)
		}
	}
	// Pages are taken from the end to keep contiguous runs at the start of
	// the arena available for Alloc.
	for i, j := 0, len(pl.pages)-1; i < j; i, j = i+1, j-1 {
		pl.pages[i], pl.pages[j] = pl.pages[j], pl.pages[i]
	}
	for _, p := range pl.pages {
		a.mark(p, 1, true)
		clear(a.pageBytes(p, 1))
	}
	return pl, nil
}

// Size returns the number of bytes the page list holds.
func (pl *PageList) Size() int { return pl.size }

// Pages returns the number of pages in the list.
func (pl *PageList) Pages() int { return len(pl.pages) }

// Free returns the pages to the arena. Free on a nil page list is a no-op.
func (pl *PageList) Free() {
	if pl == nil || pl.arena == nil {
		return
	}
	a := pl.arena
	a.mtx.Lock()
	for _, p := range pl.pages {
		a.mark(p, 1, false)
	}
	a.mtx.Unlock()
	pl.arena = nil
}

// CopyFrom copies src into the pages. Bytes beyond len(src) are zeroed.
func (pl *PageList) CopyFrom(src []byte) {
	off := 0
	for _, p := range pl.pages {
		page := pl.arena.pageBytes(p, 1)
		n := copy(page, src[min(off, len(src)):])
		clear(page[n:])
		off += cpu.PageSize
	}
}

// CopyTo copies the pages' content into dst.
func (pl *PageList) CopyTo(dst []byte) {
	off := 0
	for _, p := range pl.pages {
		if off >= len(dst) || off >= pl.size {
			return
		}
		page := pl.arena.pageBytes(p, 1)
		copy(dst[off:min(len(dst), pl.size)], page)
		off += cpu.PageSize
	}
}

// Bytes returns the memory at physical address addr. It fails with ErrFault
// if the range isn't inside the arena or the scratchpad.
func (a *Arena) Bytes(addr cpu.Addr, n int) ([]byte, error) {
	if addr.IsSPR() {
		off := int(addr &^ cpu.SPRAddr)
		if off+n > len(a.spr) || n < 0 {
			return nil, fmt.Errorf("%w: spr 0x%x+0x%x", ErrFault, off, n)
		}
		return a.spr[off : off+n], nil
	}
	if addr < a.base || n < 0 || int(addr-a.base)+n > len(a.mem) {
		return nil, fmt.Errorf("%w: 0x%08x+0x%x", ErrFault, uint32(addr), n)
	}
	off := int(addr - a.base)
	return a.mem[off : off+n], nil
}

// Lookup returns the physical address of p's first byte if p is backed by
// the arena or the scratchpad and size bytes starting there are in range.
func (a *Arena) Lookup(p []byte, size int) (cpu.Addr, Class, bool) {
	if off, ok := within(a.mem, p, size); ok {
		return a.base + cpu.Addr(off), KernelMemory, true
	}
	if off, ok := within(a.spr, p, size); ok {
		return cpu.SPRAddr | cpu.Addr(off), ScratchpadMemory, true
	}
	return 0, UserMemory, false
}

func within(region, p []byte, size int) (int, bool) {
	if len(region) == 0 || cap(p) == 0 {
		return 0, false
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(region)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	if addr < start || addr+uintptr(size) > start+uintptr(len(region)) {
		return 0, false
	}
	return int(addr - start), true
}

func (a *Arena) pageBytes(first, n int) []byte {
	return a.mem[first<<cpu.PageShift : (first+n)<<cpu.PageShift]
}

func (a *Arena) mark(first, n int, used bool) {
	for i := first; i < first+n; i++ {
		debug.Assert(a.used[i] != used, "mem: double alloc or free")
		a.used[i] = used
	}
	if used {
		a.free -= n
	} else {
		a.free += n
	}
}
