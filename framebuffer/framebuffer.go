// Package framebuffer converts between Go images and the host memory layout
// of GS pixel storage modes. Images returned by this package keep their
// pixels in one contiguous buffer, ready to be passed to gsimage.
package framebuffer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/clktmr/ps2/ee/gs"
)

// New returns an empty image of size r in the layout of psm.
func New(psm gs.PSM, r image.Rectangle) (draw.Image, error) {
	switch psm {
	case gs.PSMCT32, gs.PSMZ32:
		return NewRGBA32(r), nil
	case gs.PSMCT24, gs.PSMZ24:
		return NewRGB24(r), nil
	case gs.PSMCT16, gs.PSMCT16S, gs.PSMZ16, gs.PSMZ16S:
		return NewRGBA16(r), nil
	case gs.PSMT8:
		pal := image.NewPaletted(r, grayPalette())
		pal.Pix = makePix(len(pal.Pix))
		return pal, nil
	}
	return nil, fmt.Errorf("framebuffer: %w: %v", gs.ErrPSM, psm)
}

// Convert draws src into a new image in the layout of psm. PSMT8 images get
// a palette generated from src. With dither set, colors are reduced with
// Floyd-Steinberg error diffusion.
func Convert(src image.Image, psm gs.PSM, dither bool) (draw.Image, error) {
	r := src.Bounds().Sub(src.Bounds().Min)

	var dst draw.Image
	if psm == gs.PSMT8 {
		q := quantize.MedianCutQuantizer{}
		p := q.Quantize(make(color.Palette, 0, CLUTSize), src)
		pal := image.NewPaletted(r, p)
		pal.Pix = makePix(len(pal.Pix))
		dst = pal
	} else {
		var err error
		if dst, err = New(psm, r); err != nil {
			return nil, err
		}
	}

	var d draw.Drawer = draw.Src
	if dither {
		d = draw.FloydSteinberg
	}
	d.Draw(dst, r, src, src.Bounds().Min)
	return dst, nil
}

// Pix returns the pixel buffer of an image created by this package.
func Pix(img image.Image) ([]byte, error) {
	switch img := img.(type) {
	case *image.NRGBA:
		return img.Pix, nil
	case *RGB24:
		return img.Pix, nil
	case *RGBA16:
		return img.Pix, nil
	case *image.Paletted:
		return img.Pix, nil
	}
	return nil, fmt.Errorf("framebuffer: unsupported image type %T", img)
}

// FromPix wraps w×h pixels stored in the layout of psm. PSMT8 images use the
// palette p.
func FromPix(psm gs.PSM, w, h int, pix []byte, p color.Palette) (image.Image, error) {
	size, err := psm.ImageSize(0, w, h)
	if err != nil {
		return nil, fmt.Errorf("framebuffer: %w", err)
	}
	if len(pix) < size {
		return nil, fmt.Errorf("framebuffer: %d bytes for %dx%d %v", len(pix), w, h, psm)
	}
	r := image.Rect(0, 0, w, h)
	bpl, _ := psm.BytesPerLine(w)

	switch psm {
	case gs.PSMCT32, gs.PSMZ32:
		return &image.NRGBA{Pix: pix[:size], Stride: bpl, Rect: r}, nil
	case gs.PSMCT24, gs.PSMZ24:
		return &RGB24{Pix: pix[:size], Stride: bpl, Rect: r}, nil
	case gs.PSMCT16, gs.PSMCT16S, gs.PSMZ16, gs.PSMZ16S:
		return &RGBA16{Pix: pix[:size], Stride: bpl, Rect: r}, nil
	case gs.PSMT8:
		if p == nil {
			p = grayPalette()
		}
		return &image.Paletted{Pix: pix[:size], Stride: bpl, Rect: r, Palette: p}, nil
	}
	return nil, fmt.Errorf("framebuffer: %w: %v", gs.ErrPSM, psm)
}

func grayPalette() color.Palette {
	p := make(color.Palette, CLUTSize)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}
