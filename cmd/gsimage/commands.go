package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/clktmr/ps2/drivers/gsimage"
	"github.com/clktmr/ps2/ee/gs"
	"github.com/clktmr/ps2/framebuffer"
)

// rectFlags describe the destination or source of a transfer.
type rectFlags struct {
	psm      string
	fbp, fbw uint
	x, y     int
}

func (r *rectFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&r.psm, "psm", "PSMCT32", "pixel storage mode")
	flags.UintVar(&r.fbp, "fbp", 0, "buffer base pointer in 256 byte blocks")
	flags.UintVar(&r.fbw, "fbw", 0, "buffer width in 64 pixel units, derived from the image if zero")
	flags.IntVar(&r.x, "x", 0, "left edge of the rectangle")
	flags.IntVar(&r.y, "y", 0, "top edge of the rectangle")
}

func (r *rectFlags) image(w, h int) (*gsimage.Image, error) {
	psm, err := gs.ParsePSM(r.psm)
	if err != nil {
		return nil, err
	}
	fbw := uint32(r.fbw)
	if fbw == 0 {
		fbw = uint32((r.x + w + 63) / 64)
	}
	return &gsimage.Image{X: r.x, Y: r.y, W: w, H: h, FBP: uint32(r.fbp), FBW: fbw, PSM: psm}, nil
}

func parse(flags *flag.FlagSet, args []string, usage string) error {
	flags.SetOutput(flag.CommandLine.Output())
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: gsimage %s %s\n\n", flags.Name(), usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return flag.ErrHelp
	}
	return nil
}

// upload converts src and loads it into the rectangle. PSMT8 images also
// get their CLUT loaded at cbp.
func upload(ctx context.Context, sys *system, src image.Image, rf *rectFlags, cbp uint, dither bool) (*gsimage.Image, error) {
	b := src.Bounds()
	img, err := rf.image(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	conv, err := framebuffer.Convert(src, img.PSM, dither)
	if err != nil {
		return nil, err
	}
	if img.Pix, err = framebuffer.Pix(conv); err != nil {
		return nil, err
	}

	if pal, ok := conv.(*image.Paletted); ok {
		clut, err := framebuffer.EncodeCLUT(pal.Palette)
		if err != nil {
			return nil, err
		}
		err = sys.dev.LoadImage(ctx, &gsimage.Image{
			Pix: clut, W: 16, H: 16, FBP: uint32(cbp), FBW: 1, PSM: gs.PSMCT32,
		}, false)
		if err != nil {
			return nil, fmt.Errorf("load CLUT: %w", err)
		}
	}

	sys.l.WithField("psm", img.PSM).Infof("loading %dx%d at %d,%d", img.W, img.H, img.X, img.Y)
	if err := sys.dev.LoadImage(ctx, img, false); err != nil {
		return nil, err
	}
	return img, nil
}

// download reads the rectangle back. PSMT8 images get their palette from
// the CLUT at cbp.
func download(sys *system, img *gsimage.Image, cbp uint) (image.Image, error) {
	size, err := img.PSM.ImageSize(img.X, img.W, img.H)
	if err != nil {
		return nil, err
	}
	img.Pix = make([]byte, size)

	start := time.Now()
	if err := sys.dev.StoreImage(img); err != nil {
		return nil, err
	}
	sys.l.WithField("psm", img.PSM).Infof("stored %dx%d in %v", img.W, img.H, time.Since(start))

	var pal color.Palette
	if img.PSM == gs.PSMT8 {
		clut := &gsimage.Image{
			Pix: make([]byte, framebuffer.CLUTSize*4),
			W:   16, H: 16, FBP: uint32(cbp), FBW: 1, PSM: gs.PSMCT32,
		}
		if err := sys.dev.StoreImage(clut); err != nil {
			return nil, fmt.Errorf("store CLUT: %w", err)
		}
		if pal, err = framebuffer.DecodeCLUT(clut.Pix); err != nil {
			return nil, err
		}
	}
	return framebuffer.FromPix(img.PSM, img.W, img.H, img.Pix, pal)
}

func loadMain(ctx context.Context, sys *system, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("load", flag.ContinueOnError)
	var rf rectFlags
	rf.register(flags)
	cbp := flags.Uint("cbp", 0x3f00, "CLUT base pointer for PSMT8")
	dither := flags.Bool("dither", false, "enable Floyd-Steinberg error diffusion")
	if err := parse(flags, args, "[flags] <image>"); err != nil {
		return err
	}

	src, err := readImage(flags.Arg(0))
	if err != nil {
		return err
	}
	img, err := upload(ctx, sys, src, &rf, *cbp, *dither)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loaded %dx%d %v at fbp=0x%x fbw=%d\n", img.W, img.H, img.PSM, img.FBP, img.FBW)
	return nil
}

func storeMain(ctx context.Context, sys *system, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("store", flag.ContinueOnError)
	var rf rectFlags
	rf.register(flags)
	w := flags.Int("w", 0, "width of the rectangle")
	h := flags.Int("h", 0, "height of the rectangle")
	cbp := flags.Uint("cbp", 0x3f00, "CLUT base pointer for PSMT8")
	if err := parse(flags, args, "[flags] <image>"); err != nil {
		return err
	}

	img, err := rf.image(*w, *h)
	if err != nil {
		return err
	}
	dst, err := download(sys, img, *cbp)
	if err != nil {
		return err
	}
	if err := writeImage(flags.Arg(0), dst); err != nil {
		return err
	}
	fmt.Fprintf(out, "stored %dx%d %v to %s\n", img.W, img.H, img.PSM, flags.Arg(0))
	return nil
}

var errMismatch = errors.New("image read back differs")

func roundtripMain(ctx context.Context, sys *system, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("roundtrip", flag.ContinueOnError)
	var rf rectFlags
	rf.register(flags)
	count := flags.Int("count", 1, "number of round trips")
	cbp := flags.Uint("cbp", 0x3f00, "CLUT base pointer for PSMT8")
	if err := parse(flags, args, "[flags] <image>"); err != nil {
		return err
	}

	src, err := readImage(flags.Arg(0))
	if err != nil {
		return err
	}
	for i := range *count {
		img, err := upload(ctx, sys, src, &rf, *cbp, false)
		if err != nil {
			return err
		}
		want := bytes.Clone(img.Pix)
		if _, err := download(sys, img, *cbp); err != nil {
			return err
		}
		if !bytes.Equal(want, img.Pix) {
			return fmt.Errorf("round trip %d: %w", i, errMismatch)
		}
	}
	fmt.Fprintf(out, "%d round trips ok\n", *count)
	return nil
}
