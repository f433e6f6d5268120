package ee

import (
	"fmt"
	"sync"
)

// IRQ identifies an interrupt source. The INTC sources, the DMAC channel
// completions and the GS events all end up on the CPU's interrupt lines, so
// they are numbered in one space.
type IRQ int

// INTC sources
const (
	IrqGS IRQ = iota
	IrqSBUS
	IrqVBlankStart
	IrqVBlankEnd
	IrqVIF0
	IrqVIF1
	IrqVU0
	IrqVU1
	IrqIPU
	IrqTimer0
	IrqTimer1
)

// DMAC channel completions
const (
	IrqDMAVIF0 IRQ = iota + 16
	IrqDMAVIF1
	IrqDMAGIF
	IrqDMAFromIPU
	IrqDMAToIPU
	IrqDMASIF0
	IrqDMASIF1
	IrqDMASIF2
	IrqDMAFromSPR
	IrqDMAToSPR
)

// GS events, multiplexed on IrqGS
const (
	IrqGSSignal IRQ = iota + 32
	IrqGSFinish
	IrqGSHSync
	IrqGSVSync
	IrqGSEDW

	IrqLast
)

// A SharedHandler reports whether it consumed the event. Handlers sharing an
// IRQ are called in registration order until one consumes it.
type SharedHandler func() bool

// Intc dispatches raised interrupts to their handlers. Each IRQ has either an
// exclusive handler or a chain of shared handlers.
//
// Intc is safe for concurrent use.
type Intc struct {
	mtx      sync.RWMutex
	handlers [IrqLast][]SharedHandler
}

func NewIntc() *Intc {
	return &Intc{}
}

// SetHandler installs handler as the only handler of irq. A nil handler
// removes all handlers.
func (c *Intc) SetHandler(irq IRQ, handler func()) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if handler == nil {
		c.handlers[irq] = nil
		return
	}
	c.handlers[irq] = []SharedHandler{func() bool { handler(); return true }}
}

// AddSharedHandler appends handler to the chain of irq.
func (c *Intc) AddSharedHandler(irq IRQ, handler SharedHandler) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.handlers[irq] = append(c.handlers[irq], handler)
}

// Raise runs the handlers of irq and reports whether one of them consumed the
// event. It must be called from the context that services the interrupt,
// i.e. never while holding a lock a handler might take.
func (c *Intc) Raise(irq IRQ) bool {
	if irq < 0 || irq >= IrqLast {
		panic(fmt.Sprintf("ee: invalid irq %d", irq))
	}

	c.mtx.RLock()
	handlers := c.handlers[irq]
	c.mtx.RUnlock()

	if len(handlers) == 0 {
		panic(fmt.Sprintf("ee: unhandled interrupt %d", irq))
	}
	for _, handler := range handlers {
		if handler() {
			return true
		}
	}
	return false
}

// Handled reports whether irq has at least one handler.
func (c *Intc) Handled(irq IRQ) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.handlers[irq]) != 0
}
