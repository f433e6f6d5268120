package dma

import (
	"github.com/clktmr/ps2/ee"
)

// DefaultQueueSize is the number of requests a channel queues before
// rejecting new ones.
const DefaultQueueSize = 32

// Controller owns the channels of one DMAC and routes their completion
// interrupts.
type Controller struct {
	bus      ee.Bus
	channels [NumChannels]*Channel
}

// NewController creates all channels and installs their interrupt handlers
// on intc. A qsize of zero selects DefaultQueueSize.
func NewController(bus ee.Bus, intc *ee.Intc, qsize int) *Controller {
	if qsize <= 0 {
		qsize = DefaultQueueSize
	}
	c := &Controller{bus: bus}
	for id := range NumChannels {
		ch := newChannel(bus, id, qsize)
		c.channels[id] = ch
		intc.SetHandler(id.IRQ(), func() { c.interrupt(ch) })
	}
	return c
}

// Channel returns the channel id.
func (c *Controller) Channel(id ChannelID) *Channel {
	return c.channels[id]
}

func (c *Controller) interrupt(ch *Channel) {
	// D_STAT channel status bits are cleared by writing one
	c.bus.Store32(DStat, 1<<uint(ch.id))
	ch.HandleIRQ()
}

// Stop stops all channels, aborting active transfers. Channels are stopped
// in reverse order, the GIF channel before VIF1.
func (c *Controller) Stop() {
	for i := len(c.channels) - 1; i >= 0; i-- {
		c.channels[i].Stop()
	}
}
