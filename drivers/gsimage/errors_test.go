package gsimage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clktmr/ps2/ee/dma"
)

func TestCode(t *testing.T) {
	assert.Equal(t, 0, Code(nil))
	assert.Equal(t, -22, Code(fmt.Errorf("%w: bad psm", ErrInvalidArgument)))
	assert.Equal(t, -12, Code(ErrNoMemory))
	assert.Equal(t, -11, Code(ErrHardwareTimeout))
	assert.Equal(t, -11, Code(fmt.Errorf("%w: %w", ErrHardwareTimeout, ErrPIOTimeout)))
	assert.Equal(t, -4, Code(ErrInterrupted))
	assert.Equal(t, -16, Code(fmt.Errorf("load: %w", dma.ErrBusy)))
	assert.Equal(t, -5, Code(errors.New("other")))
}
