package vif

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	assert.Equal(t, Code(0x00000000), NOP())
	assert.Equal(t, Code(0x06008000), MaskPath3(true))
	assert.Equal(t, Code(0x06000000), MaskPath3(false))
	assert.Equal(t, Code(0x13000000), FlushA())
	assert.Equal(t, Code(0x50000006), Direct(6))
}

func TestFIFOCount(t *testing.T) {
	assert.Equal(t, 0, Status(StatFDR).FIFOCount())
	assert.Equal(t, 16, Status(0x10<<24|StatFDR).FIFOCount())
	assert.Equal(t, 31, StatFQC.FIFOCount())
}
