package eesim

import "sync"

// dispatcher runs posted functions one after another on a single goroutine.
// Posting never blocks, the queue is unbounded.
type dispatcher struct {
	mtx    sync.Mutex
	cond   sync.Cond
	queue   []func()
	running bool
	closed  bool
}

func newDispatcher() *dispatcher {
	d := &dispatcher{}
	d.cond.L = &d.mtx
	return d
}

func (d *dispatcher) post(f func()) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.closed {
		return false
	}
	d.queue = append(d.queue, f)
	d.cond.Broadcast()
	return true
}

func (d *dispatcher) run() {
	for {
		d.mtx.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mtx.Unlock()
			return
		}
		f := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.running = true
		d.mtx.Unlock()

		f()

		d.mtx.Lock()
		d.running = false
		d.cond.Broadcast()
		d.mtx.Unlock()
	}
}

// wait blocks until the queue is empty and nothing runs, including functions
// posted by the running ones.
func (d *dispatcher) wait() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for (len(d.queue) != 0 || d.running) && !d.closed {
		d.cond.Wait()
	}
}

func (d *dispatcher) close() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.closed = true
	d.queue = nil
	d.cond.Broadcast()
}
