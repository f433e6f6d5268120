package cpu

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// AlignUp rounds v up to the next multiple of align, which must be a power of
// two.
func AlignUp[T constraints.Integer](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}

// AlignDown rounds v down to a multiple of align, which must be a power of
// two.
func AlignDown[T constraints.Integer](v, align T) T {
	return v &^ (align - 1)
}

// IsAligned reports whether v is a multiple of align, which must be a power
// of two.
func IsAligned[T constraints.Integer](v, align T) bool {
	return v&(align-1) == 0
}

// MakeAlignedBytes returns a byte slice whose first element is aligned to
// align bytes. The capacity is padded to a whole number of quad words, so quad
// word loads and stores never touch memory outside of the allocation.
func MakeAlignedBytes(size int, align uintptr) []byte {
	if align < QWordSize {
		align = QWordSize
	}
	buf := make([]byte, size+int(align)+QWordSize)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int(AlignUp(addr, align) - addr)
	return buf[shift : shift+size : shift+AlignUp(size, QWordSize)]
}

// SliceAlignment returns the address of the first element of p modulo align.
func SliceAlignment(p []byte, align uintptr) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p))) % align
}

var barrier atomic.Uint32

// Sync orders all preceding memory and register accesses before any
// following one, like the sync.l instruction.
func Sync() {
	barrier.Add(1)
}
