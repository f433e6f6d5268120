package framebuffer

import (
	"image"
	"image/color"

	"github.com/clktmr/ps2/ee/cpu"
)

// Alignment of pixel buffers allocated by this package.
const Alignment = cpu.QWordSize

func makePix(n int) []byte {
	return cpu.MakeAlignedBytes(n, Alignment)
}

// NewRGBA32 returns an image in PSMCT32 layout, which matches image.NRGBA.
func NewRGBA32(r image.Rectangle) *image.NRGBA {
	return &image.NRGBA{
		Pix:    makePix(r.Dx() * r.Dy() * 4),
		Stride: 4 * r.Dx(),
		Rect:   r,
	}
}

// RGB24 stores opaque pixels in PSMCT24 layout, three bytes per pixel.
type RGB24 struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func NewRGB24(r image.Rectangle) *RGB24 {
	return &RGB24{
		Pix:    makePix(r.Dx() * r.Dy() * 3),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

func (p *RGB24) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB24) Bounds() image.Rectangle {
	return p.Rect
}

func (p *RGB24) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	return color.RGBA{p.Pix[i], p.Pix[i+1], p.Pix[i+2], 0xff}
}

func (p *RGB24) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	col := color.NRGBAModel.Convert(c).(color.NRGBA)
	p.Pix[i], p.Pix[i+1], p.Pix[i+2] = col.R, col.G, col.B
}

func (p *RGB24) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// RGBA16 stores pixels in PSMCT16 layout: little endian with 5 bits per
// color, red in the lowest bits, and a 1 bit alpha on top.
type RGBA16 struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func NewRGBA16(r image.Rectangle) *RGBA16 {
	return &RGBA16{
		Pix:    makePix(r.Dx() * r.Dy() * 2),
		Stride: 2 * r.Dx(),
		Rect:   r,
	}
}

type colorRGBA16 uint16

func (c colorRGBA16) RGBA() (r, g, b, a uint32) {
	r = expand5(uint32(c) & 0x1f)
	g = expand5(uint32(c>>5) & 0x1f)
	b = expand5(uint32(c>>10) & 0x1f)
	if c&0x8000 == 0 {
		return 0, 0, 0, 0
	}
	return r, g, b, 0xffff
}

func expand5(v uint32) uint32 {
	v = v<<3 | v>>2
	return v<<8 | v
}

var RGBA16Model color.Model = color.ModelFunc(rgba16Model)

func rgba16Model(c color.Color) color.Color {
	if _, ok := c.(colorRGBA16); ok {
		return c
	}
	col := color.NRGBAModel.Convert(c).(color.NRGBA)
	v := colorRGBA16(col.R>>3) | colorRGBA16(col.G>>3)<<5 | colorRGBA16(col.B>>3)<<10
	if col.A >= 0x80 {
		v |= 0x8000
	}
	return v
}

func (p *RGBA16) ColorModel() color.Model { return RGBA16Model }

func (p *RGBA16) Bounds() image.Rectangle {
	return p.Rect
}

func (p *RGBA16) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	offset := p.PixOffset(x, y)
	return colorRGBA16(uint16(p.Pix[offset]) | uint16(p.Pix[offset+1])<<8)
}

func (p *RGBA16) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	offset := p.PixOffset(x, y)
	col, _ := rgba16Model(c).(colorRGBA16)
	p.Pix[offset] = uint8(col & 0xff)
	p.Pix[offset+1] = uint8(col >> 8)
}

func (p *RGBA16) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}
