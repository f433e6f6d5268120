package ee

import (
	"encoding/binary"

	"github.com/clktmr/ps2/ee/cpu"
)

// Quad is a 128-bit value as moved by the lq/sq instructions. Index 0 holds
// the lower 64 bits.
type Quad [2]uint64

// QuadFromBytes reads a little endian quad word from p.
func QuadFromBytes(p []byte) Quad {
	return Quad{binary.LittleEndian.Uint64(p), binary.LittleEndian.Uint64(p[8:])}
}

// PutBytes writes q little endian into p.
func (q Quad) PutBytes(p []byte) {
	binary.LittleEndian.PutUint64(p, q[0])
	binary.LittleEndian.PutUint64(p[8:], q[1])
}

// Bus gives uncached access to the physical address space. Implementations
// must be safe for concurrent use, since registers are accessed from caller
// goroutines as well as from interrupt handlers.
type Bus interface {
	Load32(addr cpu.Addr) uint32
	Store32(addr cpu.Addr, v uint32)
	Load64(addr cpu.Addr) uint64
	Store64(addr cpu.Addr, v uint64)
	LoadQuad(addr cpu.Addr) Quad
	StoreQuad(addr cpu.Addr, v Quad)
}

// Reg32 is a 32-bit register at a fixed bus address.
type Reg32[T ~uint32] struct {
	bus  Bus
	addr cpu.Addr
}

func NewReg32[T ~uint32](bus Bus, addr cpu.Addr) Reg32[T] {
	return Reg32[T]{bus, addr}
}

func (r Reg32[T]) Load() T          { return T(r.bus.Load32(r.addr)) }
func (r Reg32[T]) Store(v T)        { r.bus.Store32(r.addr, uint32(v)) }
func (r Reg32[T]) LoadBits(m T) T   { return r.Load() & m }
func (r Reg32[T]) Addr() cpu.Addr   { return r.addr }
func (r Reg32[T]) SetBits(m T)      { r.Store(r.Load() | m) }
func (r Reg32[T]) ClearBits(m T)    { r.Store(r.Load() &^ m) }
func (r Reg32[T]) StoreBits(m, v T) { r.Store(r.Load()&^m | v&m) }

// Reg64 is a 64-bit register at a fixed bus address, e.g. the GS privileged
// registers.
type Reg64[T ~uint64] struct {
	bus  Bus
	addr cpu.Addr
}

func NewReg64[T ~uint64](bus Bus, addr cpu.Addr) Reg64[T] {
	return Reg64[T]{bus, addr}
}

func (r Reg64[T]) Load() T        { return T(r.bus.Load64(r.addr)) }
func (r Reg64[T]) Store(v T)      { r.bus.Store64(r.addr, uint64(v)) }
func (r Reg64[T]) Addr() cpu.Addr { return r.addr }

// ReadFIFO moves len(p) bytes from a quad word FIFO into p. Every access
// consumes a whole quad word, so a trailing partial quad word is read but
// only partially copied.
func ReadFIFO(bus Bus, fifo cpu.Addr, p []byte) {
	var buf [cpu.QWordSize]byte
	for len(p) > 0 {
		q := bus.LoadQuad(fifo)
		if len(p) < cpu.QWordSize {
			q.PutBytes(buf[:])
			copy(p, buf[:])
			return
		}
		q.PutBytes(p)
		p = p[cpu.QWordSize:]
	}
}
