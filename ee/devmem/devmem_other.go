//go:build !linux

package devmem

import (
	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

type Mem struct {
	maps []mapping
}

func Open(path string, windows ...Window) (*Mem, error) {
	return nil, ErrUnsupported
}

func (m *Mem) Close() error { return nil }

func (m *Mem) Load32(addr cpu.Addr) uint32        { panic(ErrUnsupported) }
func (m *Mem) Store32(addr cpu.Addr, v uint32)    { panic(ErrUnsupported) }
func (m *Mem) Load64(addr cpu.Addr) uint64        { panic(ErrUnsupported) }
func (m *Mem) Store64(addr cpu.Addr, v uint64)    { panic(ErrUnsupported) }
func (m *Mem) LoadQuad(addr cpu.Addr) ee.Quad     { panic(ErrUnsupported) }
func (m *Mem) StoreQuad(addr cpu.Addr, v ee.Quad) { panic(ErrUnsupported) }
