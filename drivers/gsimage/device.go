// Package gsimage moves image data between host memory and GS local memory.
//
// LoadImage sends pixels to the GS over PATH3 with a single source chain DMA
// on the GIF channel. StoreImage reads pixels back through the VIF1 host
// interface. Reading back needs PATH3 to be masked, the bus direction to be
// switched and the GS to be told which rectangle to send. DMA from the VIF1
// FIFO works in units of 128 bytes, so unaligned fragments at either end of
// the buffer are moved by the CPU.
package gsimage

import (
	"fmt"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/ee/mem"
	"github.com/clktmr/ps2/ee/vif"
)

const (
	DefaultWatchdog     = time.Second
	DefaultPIOSpinLimit = 100000
)

// Config tunes a Device. The zero value selects the defaults.
type Config struct {
	// Watchdog bounds each hardware step of StoreImage.
	Watchdog time.Duration

	// PIOSpinLimit is the number of FIFO status polls before a programmed
	// I/O transfer gives up.
	PIOSpinLimit int

	// SendChannel carries LoadImage packets, the GIF channel by default.
	// StoreImage holds it while reading back. It can't be VIF1.
	SendChannel dma.ChannelID

	Logger  *logrus.Logger
	Metrics metrics.Registry
}

// Device transfers images to and from the GS.
type Device struct {
	l   *logrus.Logger
	cfg Config

	bus  ee.Bus
	mem  mem.Memory
	send *dma.Channel
	gif  *dma.Channel
	vif  *dma.Channel

	vifRegs *vif.Regs
	gsRegs  *gs.Regs

	// unmask is the VIF packet ending every StoreImage.
	unmask *mem.Block

	// mtx is shared by the completions of all requests.
	mtx sync.Mutex

	// finish holds the StoreImage request waiting for the GS FINISH event.
	finish ee.Pending[storeRequest]

	metrics *deviceMetrics
}

// NewDevice creates a device using the channels of dmac and DMA memory from
// memory. It installs a shared handler for the GS FINISH event on intc.
func NewDevice(bus ee.Bus, intc *ee.Intc, dmac *dma.Controller, memory mem.Memory, cfg Config) (*Device, error) {
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = DefaultWatchdog
	}
	if cfg.PIOSpinLimit <= 0 {
		cfg.PIOSpinLimit = DefaultPIOSpinLimit
	}
	if cfg.SendChannel == 0 {
		cfg.SendChannel = dma.GIF
	}
	if cfg.SendChannel == dma.VIF1 || cfg.SendChannel < 0 || cfg.SendChannel >= dma.NumChannels {
		return nil, fmt.Errorf("%w: send channel %v", ErrInvalidArgument, cfg.SendChannel)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultRegistry
	}

	unmask, err := memory.Alloc(cpu.QWordSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	gs.NewPacket(unmask.Bytes).PutWords([4]uint32{
		uint32(vif.MaskPath3(false)), uint32(vif.NOP()), uint32(vif.NOP()), uint32(vif.NOP()),
	})

	d := &Device{
		l:       cfg.Logger,
		cfg:     cfg,
		bus:     bus,
		mem:     memory,
		send:    dmac.Channel(cfg.SendChannel),
		gif:     dmac.Channel(dma.GIF),
		vif:     dmac.Channel(dma.VIF1),
		vifRegs: vif.NewRegs(bus),
		gsRegs:  gs.NewRegs(bus),
		unmask:  unmask,
		metrics: newDeviceMetrics(cfg.Metrics),
	}
	intc.AddSharedHandler(ee.IrqGSFinish, d.Finish)
	return d, nil
}

// Finish handles the GS FINISH event. It reports whether the event belonged
// to a StoreImage in progress.
func (d *Device) Finish() bool {
	r := d.finish.Take()
	if r == nil {
		return false
	}
	r.rendezvous()
	return true
}

// Stop aborts all transfers of the device. Waiting callers return once their
// requests are freed.
func (d *Device) Stop() {
	d.send.Stop()
	if d.gif != d.send {
		d.gif.Stop()
	}
	d.vif.Stop()
}

// Resume accepts requests again after Stop.
func (d *Device) Resume() {
	d.send.Resume()
	d.gif.Resume()
	d.vif.Resume()
}

// Close releases the device's DMA memory. The device must be idle.
func (d *Device) Close() {
	d.unmask.Free()
}
