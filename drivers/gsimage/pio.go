package gsimage

import (
	"fmt"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/mem"
	"github.com/clktmr/ps2/ee/vif"
)

// pio fills dst from the VIF1 FIFO and then discards dummy quad words. Each
// quad word is polled for with a bounded spin.
func (d *Device) pio(dst []byte, dummy int) error {
	for i := 0; i < len(dst); i += cpu.QWordSize {
		if !d.waitFIFO() {
			return fmt.Errorf("%w: %d bytes left", ErrPIOTimeout, len(dst)-i)
		}
		ee.ReadFIFO(d.bus, vif.VIF1FIFO, dst[i:min(i+cpu.QWordSize, len(dst))])
	}
	for ; dummy > 0; dummy-- {
		if !d.waitFIFO() {
			return fmt.Errorf("%w: %d dummies left", ErrPIOTimeout, dummy)
		}
		d.vifRegs.Pop()
	}
	return nil
}

func (d *Device) waitFIFO() bool {
	for range d.cfg.PIOSpinLimit {
		if d.vifRegs.Stat.Load().FIFOCount() != 0 {
			return true
		}
	}
	return false
}

// copyToChain copies src to byte offset off of the memory described by
// chain.
func copyToChain(tb mem.TagBuilder, chain []dma.Tag, off int, src []byte) error {
	pos := 0
	for _, t := range chain {
		if len(src) == 0 || (t.ID == dma.TagEnd && t.QWC == 0) {
			break
		}
		n := t.Bytes()
		if off < pos+n {
			start := off - pos
			cnt := min(n-start, len(src))
			p, err := tb.Virt(t.Addr+cpu.Addr(start), cnt)
			if err != nil {
				return err
			}
			copy(p, src[:cnt])
			src = src[cnt:]
			off += cnt
		}
		pos += n
	}
	if len(src) != 0 {
		return fmt.Errorf("gsimage: %d bytes beyond chain", len(src))
	}
	return nil
}
