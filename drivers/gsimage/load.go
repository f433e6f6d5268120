package gsimage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/ee/mem"
)

// loadRequest sends a prebuilt GIF packet with a single chain transfer.
type loadRequest struct {
	d      *Device
	packet *mem.Block
	pl     *mem.PageList

	// done is nil for asynchronous loads and for waits that were
	// interrupted. It's guarded by the device's lock.
	done *completion

	started, stopped atomic.Bool
}

func (r *loadRequest) Start(ch *dma.Channel) {
	r.started.Store(true)
	ch.SendChain(r.packet.Addr)
}

func (r *loadRequest) IsDone(ch *dma.Channel) bool { return true }

func (r *loadRequest) Stop(ch *dma.Channel) {
	r.stopped.Store(true)
	ch.ForceBreak()
}

func (r *loadRequest) Free(ch *dma.Channel) {
	r.d.mem.Release(r.pl)
	r.packet.Free()

	var err error
	if !r.started.Load() || r.stopped.Load() {
		err = fmt.Errorf("gsimage: load image: %w", dma.ErrStopped)
		r.d.metrics.loadError.Inc(1)
	} else {
		r.d.metrics.loadOK.Inc(1)
	}

	r.d.mtx.Lock()
	done := r.done
	r.done = nil
	r.d.mtx.Unlock()
	if done != nil {
		done.Signal(err)
	}
}

// packetQWC returns the packet size for a chain of n segments: a header
// setting up the transfer, three quad words per segment and the trailer.
func packetQWC(segments int) int {
	return 6 + 3*segments + 2
}

// maxImageQWC is the largest IMAGE GIF packet.
const maxImageQWC = 1<<15 - 1

// loadSegments splits the tags of chain into pieces fitting one IMAGE packet
// each. The terminating tag is dropped.
func loadSegments(chain []dma.Tag) []dma.Tag {
	var segs []dma.Tag
	for _, t := range chain {
		if t.ID == dma.TagEnd && t.QWC == 0 {
			break
		}
		for t.QWC > maxImageQWC {
			segs = append(segs, dma.Tag{ID: t.ID, Addr: t.Addr, QWC: maxImageQWC})
			t.Addr += maxImageQWC * cpu.QWordSize
			t.QWC -= maxImageQWC
		}
		segs = append(segs, t)
	}
	return segs
}

// buildLoadPacket writes the chain transfer for an upload of the pixels
// described by segs. Each segment is sent as one IMAGE GIF packet.
func buildLoadPacket(p *gs.Packet, img *Image, segs []dma.Tag) {
	p.PutQuad(dma.Tag{ID: dma.TagCnt, QWC: 5}.Quad())
	p.Put(gs.GIFTag(4, false, gs.FlagPacked, 1), gs.RegsAD)
	p.PutAD(gs.BITBLTBUF, gs.BitBltBuf(img.FBP, img.FBW, img.PSM, gs.XDirHostToLocal))
	p.PutAD(gs.TRXPOS, gs.TrxPos(img.X, img.Y, gs.XDirHostToLocal))
	p.PutAD(gs.TRXREG, gs.TrxReg(img.W, img.H))
	p.PutAD(gs.TRXDIR, gs.XDirHostToLocal)
	for _, t := range segs {
		p.PutQuad(dma.Tag{ID: dma.TagCnt, QWC: 1}.Quad())
		p.Put(gs.GIFTag(int(t.QWC), false, gs.FlagImage, 0), 0)
		p.PutQuad(t.Quad())
	}
	p.PutQuad(dma.Tag{ID: dma.TagEnd, QWC: 1}.Quad())
	p.Put(gs.GIFTag(0, true, gs.FlagImage, 0), 0)
	debug.Assert(p.QWC() == packetQWC(len(segs)), "gsimage: packet size mismatch")
}

// LoadImage copies img.Pix into the rectangle of GS local memory described by
// img. Unless async is set, it waits for the transfer to complete. The wait
// is aborted with ErrInterrupted when ctx is done, the transfer itself is not.
func (d *Device) LoadImage(ctx context.Context, img *Image, async bool) error {
	// failures after Enqueue are counted when the request is freed
	fail := func(err error) error {
		d.metrics.loadError.Inc(1)
		return err
	}

	_, size, err := img.geometry()
	if err != nil {
		return fail(err)
	}
	size = cpu.AlignUp(size, cpu.QWordSize)

	class, chain, pl, err := d.mem.MakeTags(img.Pix, size)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrNoMemory, err))
	}
	if class == mem.UserMemory {
		if err := d.mem.CopyFromUser(pl, img.Pix[:min(len(img.Pix), size)]); err != nil {
			d.mem.Release(pl)
			return fail(fmt.Errorf("%w: %w", ErrInvalidArgument, err))
		}
	}

	segs := loadSegments(chain)
	packet, err := d.mem.Alloc(packetQWC(len(segs)) * cpu.QWordSize)
	if err != nil {
		d.mem.Release(pl)
		return fail(fmt.Errorf("%w: %w", ErrNoMemory, err))
	}
	debug.Assert(cpu.IsAligned(packet.Addr, cpu.QWordSize), "gsimage: packet not DMA aligned")

	buildLoadPacket(gs.NewPacket(packet.Bytes), img, segs)

	r := &loadRequest{d: d, packet: packet, pl: pl}
	var done *completion
	if !async {
		done = newCompletion(&d.mtx)
		r.done = done
	}

	d.l.WithFields(logrus.Fields{
		"psm": img.PSM, "w": img.W, "h": img.H, "class": class, "segments": len(segs),
	}).Debug("gsimage: load image")

	if err := d.send.Enqueue(r, false); err != nil {
		d.mem.Release(pl)
		packet.Free()
		return fail(fmt.Errorf("gsimage: load image: %w", err))
	}
	if async {
		return nil
	}

	err = done.Wait(ctx)
	if err == ErrInterrupted {
		d.mtx.Lock()
		if done.Fired() {
			err = done.err
		} else {
			r.done = nil
		}
		d.mtx.Unlock()
	}
	return err
}
