package devmem

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
)

const DefaultPollInterval = 50 * time.Microsecond

// Poll raises the interrupts latched in D_STAT and GS CSR on intc until ctx
// is done. Handlers run on the polling goroutine, one at a time. Latched
// events without a handler are acknowledged and dropped.
func Poll(ctx context.Context, bus ee.Bus, intc *ee.Intc, interval time.Duration, l *logrus.Logger) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		PollOnce(bus, intc, l)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// PollOnce dispatches the currently latched events.
func PollOnce(bus ee.Bus, intc *ee.Intc, l *logrus.Logger) {
	stat := bus.Load32(dma.DStat)
	for id := range dma.NumChannels {
		if stat&(1<<uint(id)) == 0 {
			continue
		}
		if !intc.Handled(id.IRQ()) {
			l.WithField("channel", id).Debug("devmem: unhandled completion")
			bus.Store32(dma.DStat, 1<<uint(id))
			continue
		}
		intc.Raise(id.IRQ())
	}

	csr := gs.CSRFlags(bus.Load64(gs.CSR))
	if csr&gs.CSRFinish != 0 {
		bus.Store64(gs.CSR, uint64(gs.CSRFinish))
		if intc.Handled(ee.IrqGSFinish) && !intc.Raise(ee.IrqGSFinish) {
			l.Debug("devmem: FINISH not consumed")
		}
	}
}
