package gsimage

import (
	"errors"
	"syscall"

	"github.com/clktmr/ps2/ee/dma"
)

var (
	ErrInvalidArgument = errors.New("gsimage: invalid argument")
	ErrNoMemory        = errors.New("gsimage: out of DMA memory")
	ErrHardwareTimeout = errors.New("gsimage: hardware timeout")
	ErrInterrupted     = errors.New("gsimage: wait interrupted")
	ErrPIOTimeout      = errors.New("gsimage: VIF1 FIFO timeout")
)

// Code maps err to the negated errno the ioctl interface reports.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidArgument):
		return -int(syscall.EINVAL)
	case errors.Is(err, ErrNoMemory):
		return -int(syscall.ENOMEM)
	case errors.Is(err, ErrHardwareTimeout), errors.Is(err, ErrPIOTimeout):
		return -int(syscall.EAGAIN)
	case errors.Is(err, ErrInterrupted):
		return -int(syscall.EINTR)
	case errors.Is(err, dma.ErrBusy), errors.Is(err, dma.ErrStopped):
		return -int(syscall.EBUSY)
	}
	return -int(syscall.EIO)
}
