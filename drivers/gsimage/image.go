package gsimage

import (
	"fmt"

	"github.com/clktmr/ps2/ee/gs"
)

// Image describes a rectangle of GS local memory and its pixels in host
// memory.
type Image struct {
	Pix []byte

	// Position and size of the rectangle in pixels
	X, Y int
	W, H int

	// Buffer base pointer in 256 byte blocks and width in 64 pixel units
	FBP, FBW uint32
	PSM      gs.PSM
}

// geometry validates img and returns its line and total size in bytes.
func (img *Image) geometry() (bpl, size int, err error) {
	if img.X < 0 || img.Y < 0 || img.W < 0 || img.H < 0 {
		return 0, 0, fmt.Errorf("%w: negative rectangle %dx%d+%d+%d", ErrInvalidArgument, img.W, img.H, img.X, img.Y)
	}
	size, err = img.PSM.ImageSize(img.X, img.W, img.H)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if size == 0 {
		return 0, 0, fmt.Errorf("%w: empty image", ErrInvalidArgument)
	}
	if len(img.Pix) < size {
		return 0, 0, fmt.Errorf("%w: buffer holds %d of %d bytes", ErrInvalidArgument, len(img.Pix), size)
	}
	bpl, _ = img.PSM.BytesPerLine(img.W)
	return bpl, size, nil
}
