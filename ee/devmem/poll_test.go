package devmem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	ps2testing "github.com/clktmr/ps2/testing"
)

// latchBus clears D_STAT and CSR event bits written with one.
type latchBus struct {
	mtx  sync.Mutex
	regs map[cpu.Addr]uint64
}

func (b *latchBus) Load32(addr cpu.Addr) uint32 { return uint32(b.Load64(addr)) }
func (b *latchBus) Load64(addr cpu.Addr) uint64 {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.regs[addr]
}
func (b *latchBus) Store32(addr cpu.Addr, v uint32) { b.Store64(addr, uint64(v)) }
func (b *latchBus) Store64(addr cpu.Addr, v uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if addr == dma.DStat || addr == gs.CSR {
		b.regs[addr] &^= v
		return
	}
	b.regs[addr] = v
}
func (b *latchBus) LoadQuad(addr cpu.Addr) ee.Quad     { return ee.Quad{} }
func (b *latchBus) StoreQuad(addr cpu.Addr, v ee.Quad) {}

func (b *latchBus) latch(addr cpu.Addr, v uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.regs[addr] |= v
}

func TestPollOnce(t *testing.T) {
	bus := &latchBus{regs: make(map[cpu.Addr]uint64)}
	intc := ee.NewIntc()
	dma.NewController(bus, intc, 0) // acknowledges completions

	var finishes int
	intc.AddSharedHandler(ee.IrqGSFinish, func() bool { finishes++; return true })

	bus.latch(dma.DStat, 1<<uint(dma.VIF1)|1<<uint(dma.GIF))
	bus.latch(gs.CSR, uint64(gs.CSRFinish|gs.CSRVSync))
	PollOnce(bus, intc, ps2testing.NewLogger())

	assert.Zero(t, bus.Load32(dma.DStat))
	assert.Equal(t, uint64(gs.CSRVSync), bus.Load64(gs.CSR))
	assert.Equal(t, 1, finishes)

	PollOnce(bus, intc, ps2testing.NewLogger())
	assert.Equal(t, 1, finishes)
}

func TestPollUnhandled(t *testing.T) {
	bus := &latchBus{regs: make(map[cpu.Addr]uint64)}
	intc := ee.NewIntc()

	bus.latch(dma.DStat, 1<<uint(dma.FromIPU))
	bus.latch(gs.CSR, uint64(gs.CSRFinish))
	PollOnce(bus, intc, ps2testing.NewLogger())

	assert.Zero(t, bus.Load32(dma.DStat))
	assert.Zero(t, bus.Load64(gs.CSR))
}

func TestPollContext(t *testing.T) {
	bus := &latchBus{regs: make(map[cpu.Addr]uint64)}
	intc := ee.NewIntc()

	raised := make(chan struct{}, 1)
	intc.AddSharedHandler(ee.IrqGSFinish, func() bool {
		raised <- struct{}{}
		return true
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- Poll(ctx, bus, intc, time.Millisecond, ps2testing.NewLogger()) }()

	bus.latch(gs.CSR, uint64(gs.CSRFinish))
	select {
	case <-raised:
	case <-time.After(time.Second):
		t.Fatal("FINISH not raised")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
