package mem

import (
	"fmt"

	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
)

// Class tells where a buffer lives and thereby how it can be transferred.
type Class int

const (
	KernelMemory     Class = iota // inside the arena, transferred in place
	ScratchpadMemory              // inside the scratchpad, transferred in place
	UserMemory                    // anywhere else, staged through arena pages
)

func (c Class) String() string {
	switch c {
	case KernelMemory:
		return "kernel"
	case ScratchpadMemory:
		return "scratchpad"
	case UserMemory:
		return "user"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// TagBuilder resolves buffers to DMA tag chains.
type TagBuilder interface {
	// MakeTags classifies p and returns a chain covering size bytes of it,
	// terminated by dma.EndTag. For UserMemory, the chain describes freshly
	// allocated staging pages which are returned as well.
	MakeTags(p []byte, size int) (Class, []dma.Tag, *PageList, error)

	// CopyFromUser fills the staging pages with src.
	CopyFromUser(pl *PageList, src []byte) error

	// CopyToUser copies the staging pages into dst.
	CopyToUser(dst []byte, pl *PageList) error

	// Release frees staging pages. A nil page list is ignored.
	Release(pl *PageList)

	// Virt returns the memory at physical address addr.
	Virt(addr cpu.Addr, n int) ([]byte, error)
}

// Allocator hands out physically contiguous DMA memory.
type Allocator interface {
	Alloc(size int) (*Block, error)
}

// Memory is everything a driver needs from DMA memory.
type Memory interface {
	TagBuilder
	Allocator
}

var _ Memory = (*Arena)(nil)

// MakeTags implements TagBuilder. Buffers inside the arena or scratchpad are
// only transferred in place if they are quad word aligned, otherwise they are
// staged like any other memory.
func (a *Arena) MakeTags(p []byte, size int) (Class, []dma.Tag, *PageList, error) {
	if size <= 0 || !cpu.IsAligned(size, cpu.QWordSize) {
		return 0, nil, nil, fmt.Errorf("mem: invalid transfer size %d", size)
	}

	if addr, class, ok := a.Lookup(p, size); ok && cpu.IsAligned(addr, cpu.QWordSize) {
		return class, appendRun(nil, addr, size), nil, nil
	}

	pl, err := a.AllocPages(size)
	if err != nil {
		return 0, nil, nil, err
	}
	var chain []dma.Tag
	left := size
	for _, page := range pl.pages {
		n := min(left, cpu.PageSize)
		addr := a.base + cpu.Addr(page<<cpu.PageShift)
		// merge physically adjacent pages into one tag
		if k := len(chain) - 1; k >= 0 && chain[k].Addr+cpu.Addr(chain[k].Bytes()) == addr &&
			int(chain[k].QWC)+n/cpu.QWordSize <= dma.MaxQWC {
			chain[k].QWC += uint32(n / cpu.QWordSize)
		} else {
			chain = append(chain, dma.Tag{ID: dma.TagRef, Addr: addr, QWC: uint32(n / cpu.QWordSize)})
		}
		left -= n
	}
	return UserMemory, append(chain, dma.EndTag), pl, nil
}

// appendRun appends tags for a contiguous run, split at the maximum tag
// length, and terminates the chain.
func appendRun(chain []dma.Tag, addr cpu.Addr, size int) []dma.Tag {
	for size > 0 {
		n := min(size, dma.MaxQWC*cpu.QWordSize)
		chain = append(chain, dma.Tag{ID: dma.TagRef, Addr: addr, QWC: uint32(n / cpu.QWordSize)})
		addr += cpu.Addr(n)
		size -= n
	}
	return append(chain, dma.EndTag)
}

// CopyFromUser implements TagBuilder.
func (a *Arena) CopyFromUser(pl *PageList, src []byte) error {
	if pl == nil || pl.arena != a {
		return ErrFault
	}
	pl.CopyFrom(src)
	return nil
}

// CopyToUser implements TagBuilder.
func (a *Arena) CopyToUser(dst []byte, pl *PageList) error {
	if pl == nil || pl.arena != a {
		return ErrFault
	}
	pl.CopyTo(dst)
	return nil
}

// Release implements TagBuilder.
func (a *Arena) Release(pl *PageList) {
	pl.Free()
}

// Virt implements TagBuilder.
func (a *Arena) Virt(addr cpu.Addr, n int) ([]byte, error) {
	return a.Bytes(addr, n)
}
