package gsimage

import (
	"context"
	"sync"
)

// completion is a one-shot latch signalled from interrupt context. The lock
// is shared with the device, so a waiter can atomically check for completion
// and detach from its request.
type completion struct {
	lock  *sync.Mutex
	done  chan struct{}
	fired bool
	err   error
}

func newCompletion(lock *sync.Mutex) *completion {
	return &completion{lock: lock, done: make(chan struct{})}
}

// Signal fires the latch with err. Only the first call has an effect.
func (c *completion) Signal(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.fired {
		return
	}
	c.fired, c.err = true, err
	close(c.done)
}

// Fired must be called with the lock held.
func (c *completion) Fired() bool {
	return c.fired
}

// Wait blocks until the latch fires or ctx is done. It returns ErrInterrupted
// in the latter case.
func (c *completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ErrInterrupted
	}
}

func (c *completion) WaitUninterruptible() error {
	<-c.done
	return c.err
}
