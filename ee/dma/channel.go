// Package dma drives the Emotion Engine's DMA controller.
//
// Each Channel executes one Request at a time. Further requests wait in the
// channel's queue and are started from the completion interrupt of their
// predecessor. A request implements the protocol specific part of a transfer,
// the channel only programs registers on its behalf and tracks ownership.
package dma

import (
	"errors"
	"sync"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

var (
	ErrBusy    = errors.New("dma: channel busy")
	ErrStopped = errors.New("dma: channel stopped")
)

// Request is a transfer executed by a channel. All methods are called from
// interrupt context or with the request being the channel's active one, so a
// request never runs concurrently with itself on the same channel.
type Request interface {
	// Start is called once the request becomes the channel's active
	// request. It programs the channel's registers.
	Start(ch *Channel)

	// IsDone is called on every completion interrupt of the channel. It
	// returns false if the request started another transfer and is
	// waiting for its completion.
	IsDone(ch *Channel) bool

	// Stop aborts the request's transfer, e.g. with ForceBreak.
	Stop(ch *Channel)

	// Free releases the request's resources. It's the last call on a
	// request.
	Free(ch *Channel)
}

// Channel is a single DMAC channel with its request queue.
//
// Channel is safe for concurrent use.
type Channel struct {
	id   ChannelID
	bus  ee.Bus
	regs registers

	mtx     sync.Mutex
	active  Request
	queue   []Request
	qsize   int
	stopped bool

	// tag cursor of the active request
	tags []Tag
	tagp int
}

func newChannel(bus ee.Bus, id ChannelID, qsize int) *Channel {
	return &Channel{
		id:    id,
		bus:   bus,
		regs:  newRegisters(bus, id.Base()),
		qsize: qsize,
	}
}

func (ch *Channel) ID() ChannelID { return ch.id }
func (ch *Channel) IRQ() ee.IRQ   { return ch.id.IRQ() }

// Write stores v in the channel register reg.
func (ch *Channel) Write(reg Reg, v uint32) {
	ch.bus.Store32(ch.id.Base()+cpu.Addr(reg), v)
}

// Read loads the channel register reg.
func (ch *Channel) Read(reg Reg) uint32 {
	return ch.bus.Load32(ch.id.Base() + cpu.Addr(reg))
}

// Busy reports whether the channel's hardware is still transferring.
func (ch *Channel) Busy() bool {
	return ch.regs.chcr.LoadBits(Start) != 0
}

// Send starts a normal mode transfer of qwc quad words from memory at addr to
// the peripheral.
func (ch *Channel) Send(addr cpu.Addr, qwc int) {
	debug.Assert(cpu.IsAligned(addr, cpu.QWordSize), "dma: unaligned send")
	debug.Assert(qwc > 0 && qwc <= MaxQWC, "dma: invalid send length")
	ch.regs.madr.Store(addr)
	ch.regs.qwc.Store(uint32(qwc))
	ch.regs.chcr.Store(SendNormal)
}

// Recv starts a normal mode transfer of qwc quad words from the peripheral to
// memory at addr.
func (ch *Channel) Recv(addr cpu.Addr, qwc int) {
	debug.Assert(cpu.IsAligned(addr, cpu.QWordSize), "dma: unaligned recv")
	debug.Assert(qwc > 0 && qwc <= MaxQWC, "dma: invalid recv length")
	ch.regs.madr.Store(addr)
	ch.regs.qwc.Store(uint32(qwc))
	ch.regs.chcr.Store(RecvNormal)
}

// SendChain starts a source chain transfer with the first tag at tadr.
func (ch *Channel) SendChain(tadr cpu.Addr) {
	debug.Assert(cpu.IsAligned(tadr, cpu.QWordSize), "dma: unaligned tag")
	ch.regs.tadr.Store(tadr)
	ch.regs.qwc.Store(0)
	ch.regs.chcr.Store(SendChain)
}

// ForceBreak aborts the channel's transfer immediately. The DMAC is suspended
// while the start bit is cleared, so no other channel is affected.
func (ch *Channel) ForceBreak() {
	enable := ch.bus.Load32(DEnableR)
	ch.bus.Store32(DEnableW, enable|EnableSuspend)
	ch.regs.chcr.ClearBits(Start)
	ch.bus.Store32(DEnableW, enable&^EnableSuspend)
}

// SetCursor points the channel's tag cursor at the first tag of chain.
func (ch *Channel) SetCursor(chain []Tag) {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	ch.tags, ch.tagp = chain, 0
}

// Cursor returns the tag under the cursor. It returns false if the cursor is
// unset, exhausted or points at a zero length tag.
func (ch *Channel) Cursor() (Tag, bool) {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	if ch.tagp >= len(ch.tags) || ch.tags[ch.tagp].QWC == 0 {
		return Tag{}, false
	}
	return ch.tags[ch.tagp], true
}

// Advance moves the tag cursor to the next tag.
func (ch *Channel) Advance() {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	ch.tagp++
}

// Enqueue submits req for execution. The request is started immediately if
// the channel is idle. Unless replace is set, Enqueue fails with ErrBusy if
// the queue is full and with ErrStopped if the channel was stopped.
func (ch *Channel) Enqueue(req Request, replace bool) error {
	ch.mtx.Lock()
	if !replace {
		if ch.stopped {
			ch.mtx.Unlock()
			return ErrStopped
		}
		if len(ch.queue) >= ch.qsize {
			ch.mtx.Unlock()
			return ErrBusy
		}
	}
	if ch.active != nil {
		ch.queue = append(ch.queue, req)
		ch.mtx.Unlock()
		return nil
	}
	ch.active = req
	ch.mtx.Unlock()

	req.Start(ch)
	return nil
}

// Active returns the request currently owning the channel.
func (ch *Channel) Active() Request {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	return ch.active
}

// Pending returns the number of queued requests, excluding the active one.
func (ch *Channel) Pending() int {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	return len(ch.queue)
}

// HandleIRQ is the channel's completion handler. If the active request is
// done, it's freed and the next queued request is started.
func (ch *Channel) HandleIRQ() {
	ch.mtx.Lock()
	req := ch.active
	ch.mtx.Unlock()
	if req == nil {
		return
	}

	if !req.IsDone(ch) {
		return
	}
	ch.Release(req)
}

// Release frees req and starts the next queued request, but only if req is
// the channel's active request. It lets a request without a transfer of its
// own hand the channel back. Release reports whether req was active.
func (ch *Channel) Release(req Request) bool {
	ch.mtx.Lock()
	if ch.active != req {
		ch.mtx.Unlock()
		return false
	}
	var next Request
	if len(ch.queue) > 0 && !ch.stopped {
		next = ch.queue[0]
		ch.queue[0] = nil
		ch.queue = ch.queue[1:]
	}
	ch.active = next
	ch.tags, ch.tagp = nil, 0
	ch.mtx.Unlock()

	req.Free(ch)
	if next != nil {
		next.Start(ch)
	}
	return true
}

// Stop aborts the active request and frees all queued ones. The channel
// rejects further requests until Resume is called.
func (ch *Channel) Stop() {
	ch.mtx.Lock()
	ch.stopped = true
	req := ch.active
	queue := ch.queue
	ch.active, ch.queue = nil, nil
	ch.tags, ch.tagp = nil, 0
	ch.mtx.Unlock()

	if req != nil {
		req.Stop(ch)
		req.Free(ch)
	}
	for _, q := range queue {
		q.Free(ch)
	}
}

// Resume accepts requests again after Stop.
func (ch *Channel) Resume() {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	ch.stopped = false
}
