package ee

import "sync/atomic"

// Pending hands a single in-flight object from a goroutine to whichever
// interrupt handler claims it first. Claiming is a check-and-clear, so of two
// racing handlers exactly one gets the object and the other sees nil.
type Pending[T any] struct {
	ptr atomic.Pointer[T]
}

// Publish makes v claimable. It replaces any unclaimed object.
func (p *Pending[T]) Publish(v *T) {
	p.ptr.Store(v)
}

// Take claims the published object, or returns nil if there is none.
func (p *Pending[T]) Take() *T {
	return p.ptr.Swap(nil)
}

// Revoke withdraws v if it is still unclaimed and reports whether it was.
func (p *Pending[T]) Revoke(v *T) bool {
	return p.ptr.CompareAndSwap(v, nil)
}

// Peek returns the published object without claiming it.
func (p *Pending[T]) Peek() *T {
	return p.ptr.Load()
}
