package gsimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/dma"
	"github.com/clktmr/ps2/ee/gs"
)

func TestLayoutSweep(t *testing.T) {
	for _, psm := range gs.PSMs() {
		align := 1
		switch psm.BitsPerPixel() {
		case 8:
			align = 2
		case 4:
			align = 4
		}
		for w := align; w <= 70; w += align {
			bpl, err := psm.BytesPerLine(w)
			require.NoError(t, err)
			for h := 1; h <= 20; h++ {
				for skew := cpu.Addr(0); skew < gs.ImageUnit; skew += cpu.QWordSize {
					l := computeLayout(0x1000+skew, bpl, h)
					size := bpl * h
					assert.Equal(t, size, l.head+l.dma+l.tail, "%v %dx%d skew %d", psm, w, h, skew)
					assert.GreaterOrEqual(t, l.headDummy, 0)
					assert.GreaterOrEqual(t, l.tailDummy, 0)
					assert.GreaterOrEqual(t, l.h, h)
					assert.Zero(t, l.dma%gs.ImageUnit)
					assert.Less(t, l.head, gs.ImageUnit)
					assert.Less(t, l.tail, gs.ImageUnit)

					// everything the GS sends is consumed
					stream := cpu.AlignUp(bpl*l.h, cpu.QWordSize) / cpu.QWordSize
					assert.Equal(t, stream, l.quads(), "%v %dx%d skew %d", psm, w, h, skew)
				}
			}
		}
	}
}

func TestLayoutTail(t *testing.T) {
	// 10 lines of 33 pixels PSMCT32 from an image unit boundary: 1320 bytes
	l := computeLayout(0x2000, 33*4, 10)
	assert.Equal(t, 0, l.head)
	assert.Equal(t, 1280, l.dma)
	assert.Equal(t, 40, l.tail)
	// bpl=132 has two factors of two, lines are padded to multiples of 4
	assert.Equal(t, 12, l.h)
	assert.Equal(t, 0, l.headDummy)
	assert.Equal(t, (132*12-1280-40)>>4, l.tailDummy)
	assert.Equal(t, 132*12/16, l.quads())
}

func TestLayoutHeadOnly(t *testing.T) {
	// 3 lines of 4 bytes start 16 bytes before an image unit boundary
	l := computeLayout(0x2070, 4, 3)
	assert.Equal(t, 12, l.head)
	assert.Zero(t, l.dma)
	assert.Zero(t, l.tail)
	assert.Equal(t, 4, l.h)
	assert.Equal(t, 0, l.headDummy)
	assert.Equal(t, 1, l.quads())
}

func TestLayoutAligned(t *testing.T) {
	l := computeLayout(0x3000, 64*4, 64)
	assert.Equal(t, layout{size: 16384, h: 64, dma: 16384}, l)
}

func TestTrimChain(t *testing.T) {
	chain := []dma.Tag{
		{ID: dma.TagRef, Addr: 0x1000, QWC: 0x100},
		{ID: dma.TagRef, Addr: 0x8000, QWC: 0x10},
		{ID: dma.TagRef, Addr: 0x9000, QWC: 0x3},
		dma.EndTag,
	}

	t.Run("identity", func(t *testing.T) {
		trimmed := trimChain(chain, 0, 0)
		assert.Equal(t, chain, trimmed)
		assert.Equal(t, trimmed, trimChain(trimmed, 0, 0))
	})

	t.Run("head and tail", func(t *testing.T) {
		trimmed := trimChain(chain, 7, 5)
		assert.Equal(t, []dma.Tag{
			{ID: dma.TagRef, Addr: 0x1070, QWC: 0xf9},
			{ID: dma.TagRef, Addr: 0x8000, QWC: 0xe},
			dma.EndTag,
		}, trimmed)
		assert.Equal(t, dma.ChainQWC(chain)-12, dma.ChainQWC(trimmed))
	})

	t.Run("everything", func(t *testing.T) {
		assert.Equal(t, []dma.Tag{dma.EndTag}, trimChain(chain, 0x100, 0x13))
		assert.Equal(t, []dma.Tag{dma.EndTag}, trimChain(chain[:1:1], 1, 0x100))
	})

	t.Run("input untouched", func(t *testing.T) {
		trimChain(chain, 1, 1)
		assert.Equal(t, uint32(0x100), chain[0].QWC)
		assert.Equal(t, cpu.Addr(0x1000), chain[0].Addr)
	})
}
