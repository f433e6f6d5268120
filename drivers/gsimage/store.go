package gsimage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/ee/mem"
	"github.com/clktmr/ps2/ee/vif"
)

// prologueQWC is the size of the packet starting a readback: one quad word
// of VIF codes followed by the GS packet.
const prologueQWC = 7

// storeRequest reads an image back from the GS. It's active on the VIF1
// channel while a gifShim holds the send channel, so no PATH3 transfer can
// interfere.
type storeRequest struct {
	d    *Device
	l    *logrus.Entry
	shim *gifShim

	class mem.Class
	chain []dma.Tag // whole buffer, places PIO fragments
	recv  []dma.Tag // DMA part only
	pl    *mem.PageList
	pix   []byte
	lay   layout

	prologue *mem.Block

	// count is incremented by the start of either channel and decremented
	// by prologue completion and GS FINISH.
	count atomic.Int32
	done  *completion
	begin time.Time

	mtx          sync.Mutex
	state        state
	prologueDone bool
	err          error
	timer        *time.Timer
	wgen         uint64

	// release is set on termination, the send channel is handed back once
	// mtx is unlocked.
	release bool
}

// gifShim holds the send channel for a storeRequest.
type gifShim struct {
	r *storeRequest
}

func (g *gifShim) Start(ch *dma.Channel) {
	g.r.started()
	if g.r.terminated() {
		// terminated before the send channel got to it
		ch.Release(g)
	}
}

func (g *gifShim) IsDone(ch *dma.Channel) bool { return true }
func (g *gifShim) Stop(ch *dma.Channel)        {}
func (g *gifShim) Free(ch *dma.Channel)        {}

// StoreImage copies the rectangle described by img from GS local memory into
// img.Pix. It blocks until the transfer terminated.
func (d *Device) StoreImage(img *Image) error {
	bpl, size, err := img.geometry()
	if err != nil {
		return err
	}
	l := d.l.WithFields(logrus.Fields{"psm": img.PSM, "w": img.W, "h": img.H})

	class, chain, pl, err := d.mem.MakeTags(img.Pix, cpu.AlignUp(size, cpu.QWordSize))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoMemory, err)
	}

	lay := computeLayout(chain[0].Addr, bpl, img.H)
	l.WithFields(logrus.Fields{
		"head": lay.head, "headDummy": lay.headDummy, "dma": lay.dma,
		"tail": lay.tail, "tailDummy": lay.tailDummy, "th": lay.h,
	}).Debug("gsimage: store layout")

	prologue, err := d.mem.Alloc(prologueQWC * cpu.QWordSize)
	if err != nil {
		d.mem.Release(pl)
		return fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	debug.Assert(cpu.IsAligned(prologue.Addr, cpu.QWordSize), "gsimage: prologue not DMA aligned")

	p := gs.NewPacket(prologue.Bytes)
	p.PutWords([4]uint32{
		uint32(vif.NOP()), uint32(vif.MaskPath3(true)), uint32(vif.FlushA()), uint32(vif.Direct(prologueQWC - 1)),
	})
	p.Put(gs.GIFTag(5, true, gs.FlagPacked, 1), gs.RegsAD)
	p.PutAD(gs.BITBLTBUF, gs.BitBltBuf(img.FBP, img.FBW, img.PSM, gs.XDirLocalToHost))
	p.PutAD(gs.TRXPOS, gs.TrxPos(img.X, img.Y, gs.XDirLocalToHost))
	p.PutAD(gs.TRXREG, gs.TrxReg(img.W, lay.h))
	p.PutAD(gs.FINISH, 0)
	p.PutAD(gs.TRXDIR, gs.XDirLocalToHost)

	r := &storeRequest{
		d:        d,
		l:        l,
		class:    class,
		chain:    chain,
		recv:     trimChain(chain, cpu.QWC(lay.head), cpu.QWC(lay.tail)),
		pl:       pl,
		pix:      img.Pix[:size],
		lay:      lay,
		prologue: prologue,
		done:     newCompletion(&d.mtx),
		begin:    time.Now(),
	}
	r.shim = &gifShim{r}

	// Both are forced into the queues, the shim pauses PATH3 until the
	// readback terminated.
	d.send.Enqueue(r.shim, true)
	d.vif.Enqueue(r, true)

	return r.done.WaitUninterruptible()
}

func (r *storeRequest) started() {
	if r.count.Add(1) <= 1 {
		return
	}
	r.fire(evStarted)
}

func (r *storeRequest) rendezvous() {
	if r.count.Add(-1) > 0 {
		return
	}
	r.fire(evRendezvous)
}

func (r *storeRequest) terminated() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state == stateTerminated
}

func (r *storeRequest) fire(ev event) {
	r.mtx.Lock()
	r.fireLocked(ev)
	r.unlock()
}

// unlock unlocks mtx and then releases the send channel if the request
// terminated meanwhile. The shim may not have started yet, it releases the
// channel itself then.
func (r *storeRequest) unlock() {
	release := r.release
	r.release = false
	r.mtx.Unlock()
	if release {
		r.d.send.Release(r.shim)
	}
}

func (r *storeRequest) fireLocked(ev event) {
	for ev != evNone {
		more := false
		if r.state == stateDMATransfer && ev == evSegmentDone {
			_, more = r.d.vif.Cursor()
		}
		next, actions := transition(r.state, ev, more)
		if actions == nil {
			r.l.WithFields(logrus.Fields{"state": r.state, "event": ev}).Debug("gsimage: event ignored")
			return
		}
		r.l.WithFields(logrus.Fields{"state": next, "event": ev}).Debug("gsimage: store transition")
		r.state = next

		ev = evNone
		for _, a := range actions {
			if follow := r.do(a); follow != evNone {
				debug.Assert(ev == evNone, "gsimage: actions raised two events")
				ev = follow
			}
		}
	}
}

// do runs a single action and returns the event it caused, if any.
func (r *storeRequest) do(a action) event {
	d := r.d
	switch a {
	case actArmWatchdog:
		r.armWatchdog()
	case actCancelWatchdog:
		r.cancelWatchdog()
	case actPublishFinish:
		d.finish.Publish(r)
	case actRevokeFinish:
		d.finish.Revoke(r)
	case actSendPrologue:
		d.vif.Send(r.prologue.Addr, prologueQWC)
	case actSwitchToHost:
		d.vifRegs.Stat.Store(vif.StatFDR)
		d.gsRegs.BusDir.Store(gs.LocalToHost)
		cpu.Sync()
		return evSwitched
	case actPIOHead:
		return r.pio(0, r.lay.head, r.lay.headDummy)
	case actRewindCursor:
		d.vif.SetCursor(r.recv)
		return evSegmentDone
	case actRecvSegment:
		tag, _ := d.vif.Cursor()
		d.vif.Recv(tag.Addr, int(tag.QWC))
		d.vif.Advance()
	case actPIOTail:
		return r.pio(r.lay.head+r.lay.dma, r.lay.tail, r.lay.tailDummy)
	case actForceBreak:
		d.vif.ForceBreak()
	case actResetFIFOs:
		d.gsRegs.CSR.Store(gs.CSRFlush)
		d.vifRegs.FBRST.Store(vif.ResetFIFO)
	case actRestoreBus:
		d.vifRegs.Stat.Store(0)
		d.gsRegs.BusDir.Store(gs.HostToLocal)
		cpu.Sync()
	case actSendUnmask:
		d.vif.Send(d.unmask.Addr, 1)
	case actReleaseSend:
		r.release = true
	case actSucceed:
		r.err = nil
	case actFail:
		if r.err == nil {
			r.err = ErrHardwareTimeout
		}
		r.l.WithError(r.err).Error("gsimage: store image failed")
	}
	return evNone
}

// pio moves n bytes at offset off of the buffer with programmed I/O, then
// drains dummy quad words.
func (r *storeRequest) pio(off, n, dummy int) event {
	buf := make([]byte, n)
	if err := r.d.pio(buf, dummy); err != nil {
		r.err = fmt.Errorf("%w: %w", ErrHardwareTimeout, err)
		r.d.metrics.storePIOTimeout.Inc(1)
		return evPIOFailed
	}
	if err := copyToChain(r.d.mem, r.chain, off, buf); err != nil {
		debug.AssertErrNil(err)
		r.err = fmt.Errorf("%w: %w", ErrHardwareTimeout, err)
		return evPIOFailed
	}
	return evPIODone
}

func (r *storeRequest) armWatchdog() {
	r.cancelWatchdog()
	gen := r.wgen
	r.timer = time.AfterFunc(r.d.cfg.Watchdog, func() { r.expire(gen) })
}

func (r *storeRequest) cancelWatchdog() {
	r.wgen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *storeRequest) expire(gen uint64) {
	r.mtx.Lock()
	if gen != r.wgen || r.state == stateTerminated {
		r.mtx.Unlock()
		return
	}
	r.err = fmt.Errorf("%w: stuck in state %v", ErrHardwareTimeout, r.state)
	r.d.metrics.storeTimeout.Inc(1)
	r.fireLocked(evTimeout)
	r.unlock()
}

func (r *storeRequest) Start(ch *dma.Channel) {
	r.started()
}

// IsDone is called on VIF1 completions. The request is done once the unmask
// packet sent on termination completed.
func (r *storeRequest) IsDone(ch *dma.Channel) bool {
	r.mtx.Lock()
	s := r.state
	first := s == stateArmed && !r.prologueDone
	if first {
		r.prologueDone = true
	}
	r.mtx.Unlock()

	switch {
	case s == stateTerminated:
		// a completion racing the watchdog may still arrive before the
		// unmask packet's
		return !ch.Busy()
	case first:
		r.rendezvous()
	case s == stateDMATransfer:
		r.fire(evSegmentDone)
	}
	return false
}

func (r *storeRequest) Stop(ch *dma.Channel) {
	r.mtx.Lock()
	if r.state == stateTerminated {
		r.mtx.Unlock()
		return
	}
	r.err = fmt.Errorf("%w: %w", ErrHardwareTimeout, dma.ErrStopped)
	r.fireLocked(evTimeout)
	r.unlock()
}

func (r *storeRequest) Free(ch *dma.Channel) {
	r.mtx.Lock()
	r.cancelWatchdog()
	err := r.err
	if r.state != stateTerminated {
		err = fmt.Errorf("%w: %w", ErrHardwareTimeout, dma.ErrStopped)
	}
	r.mtx.Unlock()
	r.d.finish.Revoke(r)

	if err == nil && r.class == mem.UserMemory {
		err = r.d.mem.CopyToUser(r.pix, r.pl)
	}
	r.d.mem.Release(r.pl)
	r.prologue.Free()

	if err == nil {
		r.d.metrics.storeOK.Inc(1)
		r.d.metrics.storeLatency.UpdateSince(r.begin)
	}
	r.done.Signal(err)
}
