package gs

import (
	"errors"
	"fmt"
)

var (
	ErrPSM       = errors.New("gs: unsupported pixel storage mode")
	ErrAlignment = errors.New("gs: misaligned transfer rectangle")
)

// PSM is a pixel storage mode.
type PSM uint8

const (
	PSMCT32  PSM = 0x00
	PSMCT24  PSM = 0x01
	PSMCT16  PSM = 0x02
	PSMCT16S PSM = 0x0a
	PSMT8    PSM = 0x13
	PSMT4    PSM = 0x14
	PSMT8H   PSM = 0x1b
	PSMT4HL  PSM = 0x24
	PSMT4HH  PSM = 0x2c
	PSMZ32   PSM = 0x30
	PSMZ24   PSM = 0x31
	PSMZ16   PSM = 0x32
	PSMZ16S  PSM = 0x3a
)

type psmInfo struct {
	name  string
	bpp   int // bits per pixel in host memory
	align int // required alignment of x and width in pixels
}

var psmTable = map[PSM]psmInfo{
	PSMCT32:  {"PSMCT32", 32, 1},
	PSMZ32:   {"PSMZ32", 32, 1},
	PSMCT24:  {"PSMCT24", 24, 1},
	PSMZ24:   {"PSMZ24", 24, 1},
	PSMCT16:  {"PSMCT16", 16, 1},
	PSMCT16S: {"PSMCT16S", 16, 1},
	PSMZ16:   {"PSMZ16", 16, 1},
	PSMZ16S:  {"PSMZ16S", 16, 1},
	PSMT8:    {"PSMT8", 8, 2},
	PSMT8H:   {"PSMT8H", 8, 2},
	PSMT4:    {"PSMT4", 4, 4},
	PSMT4HL:  {"PSMT4HL", 4, 4},
	PSMT4HH:  {"PSMT4HH", 4, 4},
}

// PSMs returns all supported pixel storage modes.
func PSMs() []PSM {
	return []PSM{
		PSMCT32, PSMCT24, PSMCT16, PSMCT16S, PSMT8, PSMT4,
		PSMT8H, PSMT4HL, PSMT4HH, PSMZ32, PSMZ24, PSMZ16, PSMZ16S,
	}
}

func (m PSM) String() string {
	if info, ok := psmTable[m]; ok {
		return info.name
	}
	return fmt.Sprintf("PSM(0x%02x)", uint8(m))
}

// ParsePSM looks up a pixel storage mode by name, e.g. "PSMCT32".
func ParsePSM(name string) (PSM, error) {
	for m, info := range psmTable {
		if info.name == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrPSM, name)
}

// BitsPerPixel returns the size of a pixel in host memory.
func (m PSM) BitsPerPixel() int {
	return psmTable[m].bpp
}

// Valid reports whether the mode can be transferred.
func (m PSM) Valid() bool {
	_, ok := psmTable[m]
	return ok
}

// CheckRect verifies the alignment constraints of the mode: 8 bit modes need
// an even x and width, 4 bit modes multiples of four.
func (m PSM) CheckRect(x, w int) error {
	info, ok := psmTable[m]
	if !ok {
		return fmt.Errorf("%w: %v", ErrPSM, m)
	}
	if x%info.align != 0 || w%info.align != 0 {
		return fmt.Errorf("%w: x=%d w=%d for %v", ErrAlignment, x, w, m)
	}
	return nil
}

// BytesPerLine returns the host memory size of one line of w pixels.
func (m PSM) BytesPerLine(w int) (int, error) {
	if err := m.CheckRect(0, w); err != nil {
		return 0, err
	}
	return w * m.BitsPerPixel() / 8, nil
}

// ImageSize returns the host memory size of a w×h image, after checking x
// and w against the mode's alignment.
func (m PSM) ImageSize(x, w, h int) (int, error) {
	if err := m.CheckRect(x, w); err != nil {
		return 0, err
	}
	if w < 0 || h < 0 {
		return 0, fmt.Errorf("gs: negative image size %dx%d", w, h)
	}
	bpl, _ := m.BytesPerLine(w)
	return bpl * h, nil
}
