package framebuffer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/ee/cpu"
	"github.com/clktmr/ps2/ee/gs"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 8), uint8(y * 8), uint8(x ^ y), 0xff})
		}
	}
	return img
}

func TestBufferSizes(t *testing.T) {
	r := image.Rect(0, 0, 20, 13)
	for _, psm := range []gs.PSM{gs.PSMCT32, gs.PSMCT24, gs.PSMCT16, gs.PSMCT16S, gs.PSMT8, gs.PSMZ32} {
		img, err := New(psm, r)
		require.NoError(t, err, "%v", psm)
		pix, err := Pix(img)
		require.NoError(t, err)
		size, _ := psm.ImageSize(0, 20, 13)
		assert.Len(t, pix, size, "%v", psm)
		assert.Zero(t, cpu.SliceAlignment(pix, Alignment))
	}

	_, err := New(gs.PSMT4, r)
	assert.ErrorIs(t, err, gs.ErrPSM)
}

func TestRGBA16(t *testing.T) {
	img := NewRGBA16(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{0xff, 0x00, 0x08, 0xff})
	img.Set(1, 0, color.NRGBA{0xff, 0xff, 0xff, 0x00})

	// red in the low bits, little endian
	assert.Equal(t, []byte{0x1f, 0x84, 0x00, 0x00}, img.Pix)
	assert.Equal(t, color.NRGBA{0xff, 0, 0x08, 0xff}, color.NRGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.NRGBA{}, color.NRGBAModel.Convert(img.At(1, 0)))
	assert.Equal(t, color.RGBA{}, img.At(5, 5))
}

func TestRGB24(t *testing.T) {
	img := NewRGB24(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3}, img.Pix[9:12])
	assert.Equal(t, color.RGBA{1, 2, 3, 0xff}, img.At(1, 1))
}

func TestConvertRoundTrip(t *testing.T) {
	src := gradient(16, 8)
	for _, psm := range []gs.PSM{gs.PSMCT32, gs.PSMCT24} {
		dst, err := Convert(src, psm, false)
		require.NoError(t, err)
		pix, err := Pix(dst)
		require.NoError(t, err)

		back, err := FromPix(psm, 16, 8, pix, nil)
		require.NoError(t, err)
		for y := range 8 {
			for x := range 16 {
				assert.Equal(t, src.NRGBAAt(x, y), color.NRGBAModel.Convert(back.At(x, y)))
			}
		}
	}
}

func TestConvertPaletted(t *testing.T) {
	src := gradient(32, 32)
	dst, err := Convert(src, gs.PSMT8, true)
	require.NoError(t, err)

	pal, ok := dst.(*image.Paletted)
	require.True(t, ok)
	assert.LessOrEqual(t, len(pal.Palette), CLUTSize)
	assert.Len(t, pal.Pix, 32*32)

	clut, err := EncodeCLUT(pal.Palette)
	require.NoError(t, err)
	p, err := DecodeCLUT(clut)
	require.NoError(t, err)
	for i, c := range pal.Palette {
		assert.Equal(t, color.NRGBAModel.Convert(c), p[i])
	}
}

func TestCLUTIndex(t *testing.T) {
	assert.Equal(t, 0, clutIndex(0))
	assert.Equal(t, 16, clutIndex(8))
	assert.Equal(t, 8, clutIndex(16))
	assert.Equal(t, 31, clutIndex(31))
	assert.Equal(t, 32+16+3, clutIndex(32+8+3))

	_, err := EncodeCLUT(make(color.Palette, 257))
	assert.ErrorIs(t, err, ErrPaletteSize)
}

func TestFromPixShort(t *testing.T) {
	_, err := FromPix(gs.PSMCT32, 4, 4, make([]byte, 63), nil)
	assert.Error(t, err)
	_, err = FromPix(gs.PSMT8, 3, 4, make([]byte, 64), nil)
	assert.ErrorIs(t, err, gs.ErrAlignment)
}
