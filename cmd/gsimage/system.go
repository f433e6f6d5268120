package main

import (
	"context"
	"errors"
	"fmt"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/drivers/gsimage"
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/devmem"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/eesim"
	"github.com/clktmr/ps2/ee/mem"
)

const (
	defaultArenaPhys = 0x0100_0000
	defaultArenaSize = 4 << 20
)

// system is the device with the hardware backend and background tasks it
// depends on.
type system struct {
	l   *logrus.Logger
	dev *gsimage.Device
	sim *eesim.Machine // nil unless simulated

	g      *errgroup.Group
	cancel context.CancelFunc
	closer func() error
}

func newSystem(ctx context.Context, l *logrus.Logger, c *config.C) (*system, error) {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s := &system{l: l, g: g, cancel: cancel, closer: func() error { return nil }}

	phys := cpu.Addr(c.GetUint32("arena.phys", defaultArenaPhys))
	size := c.GetSize("arena.size", defaultArenaSize)
	intc := ee.NewIntc()

	var bus ee.Bus
	var arena *mem.Arena
	switch backend := c.GetString("hardware.backend", "sim"); backend {
	case "sim":
		var err error
		arena, err = mem.NewArena(phys, cpu.MakeAlignedBytes(size, cpu.PageSize))
		if err != nil {
			cancel()
			return nil, err
		}
		s.sim = eesim.New(arena, intc, l)
		s.closer = func() error { s.sim.Close(); return nil }
		bus = s.sim

	case "devmem":
		m, err := devmem.Open(c.GetString("hardware.device", devmem.DefaultPath),
			devmem.EERegs, devmem.GSRegs, devmem.Window{Phys: phys, Size: size})
		if err != nil {
			cancel()
			return nil, err
		}
		s.closer = m.Close
		backing, err := m.Bytes(phys, size)
		if err == nil {
			arena, err = mem.NewArena(phys, backing)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		bus = m
		interval := c.GetDuration("hardware.poll_interval", devmem.DefaultPollInterval)
		g.Go(func() error {
			return devmem.Poll(ctx, m, intc, interval, l)
		})

	default:
		cancel()
		return nil, fmt.Errorf("hardware.backend was not understood: %s", backend)
	}

	if err := s.attach(ctx, c, bus, intc, arena); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *system) attach(ctx context.Context, c *config.C, bus ee.Bus, intc *ee.Intc, arena *mem.Arena) error {
	dmac := dma.NewController(bus, intc, c.GetInt("dma.queue_size", dma.DefaultQueueSize))
	dev, err := gsimage.NewDevice(bus, intc, dmac, arena, gsimage.Config{
		Watchdog:     c.GetDuration("dma.watchdog", gsimage.DefaultWatchdog),
		PIOSpinLimit: c.GetInt("dma.pio_spin_limit", gsimage.DefaultPIOSpinLimit),
		Logger:       s.l,
		Metrics:      metrics.DefaultRegistry,
	})
	if err != nil {
		return err
	}
	s.dev = dev
	return startStats(ctx, s.g, s.l, c)
}

// Close stops the device and waits for the background tasks.
func (s *system) Close() error {
	s.cancel()
	if s.dev != nil {
		s.dev.Stop()
		s.dev.Close()
	}
	err := s.g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, s.closer())
}
