package framebuffer

import (
	"errors"
	"image/color"
)

// CLUTSize is the number of entries of a PSMT8 color lookup table.
const CLUTSize = 256

var ErrPaletteSize = errors.New("framebuffer: palette exceeds 256 colors")

// clutIndex maps a color index to its CLUT entry in CSM1 arrangement, where
// entries 8-15 and 16-23 of every 32 are swapped.
func clutIndex(i int) int {
	return i&^0x18 | (i&0x08)<<1 | (i&0x10)>>1
}

// EncodeCLUT stores p as a PSMCT32 lookup table in CSM1 arrangement. Unused
// entries are transparent black.
func EncodeCLUT(p color.Palette) ([]byte, error) {
	if len(p) > CLUTSize {
		return nil, ErrPaletteSize
	}
	clut := makePix(CLUTSize * 4)
	for i, c := range p {
		col := color.NRGBAModel.Convert(c).(color.NRGBA)
		j := clutIndex(i) * 4
		clut[j], clut[j+1], clut[j+2], clut[j+3] = col.R, col.G, col.B, col.A
	}
	return clut, nil
}

// DecodeCLUT is the inverse of EncodeCLUT.
func DecodeCLUT(clut []byte) (color.Palette, error) {
	if len(clut) < CLUTSize*4 {
		return nil, errors.New("framebuffer: short CLUT")
	}
	p := make(color.Palette, CLUTSize)
	for i := range p {
		j := clutIndex(i) * 4
		p[i] = color.NRGBA{clut[j], clut[j+1], clut[j+2], clut[j+3]}
	}
	return p, nil
}
