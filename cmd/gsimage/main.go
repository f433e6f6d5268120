// Command gsimage moves images between files and GS local memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/drivers/gsimage"
)

const usageString = `gsimage transfers images to and from the Graphics Synthesizer.

Usage:

	%s [-config file] <command> [arguments]

The commands are:

	load      upload an image file into GS local memory
	store     read a rectangle of GS local memory into an image file
	roundtrip upload an image, read it back and compare
`

var configPath = flag.String("config", "", "YAML configuration file")

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := logrus.New()
	err := run(ctx, l, *configPath, flag.Args(), os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(1)
	}
	if err != nil {
		l.WithError(err).Error("gsimage failed")
		// the exit status is the errno the driver would report
		os.Exit(-gsimage.Code(err))
	}
}

func run(ctx context.Context, l *logrus.Logger, cfgPath string, args []string, out io.Writer) error {
	c := config.NewC(l)
	if cfgPath != "" {
		if err := c.Load(cfgPath); err != nil {
			return err
		}
	}
	if err := c.ConfigureLogger(); err != nil {
		return err
	}

	var cmd func(context.Context, *system, []string, io.Writer) error
	switch args[0] {
	case "load":
		cmd = loadMain
	case "store":
		cmd = storeMain
	case "roundtrip":
		cmd = roundtripMain
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", args[0])
		flag.Usage()
		return flag.ErrHelp
	}

	sys, err := newSystem(ctx, l, c)
	if err != nil {
		return err
	}
	err = cmd(ctx, sys, args, out)
	return errors.Join(err, sys.Close())
}
