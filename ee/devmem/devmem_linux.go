//go:build linux

package devmem

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// Mem is a set of mapped windows of physical memory. It implements ee.Bus.
// Accesses outside the mapped windows panic.
type Mem struct {
	f    *os.File
	maps []mapping
}

// Open maps windows of the memory device at path, usually DefaultPath. Each
// window must be page aligned.
func Open(path string, windows ...Window) (*Mem, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: %w", err)
	}
	m := &Mem{f: f}

	pagesize := unix.Getpagesize()
	for _, w := range windows {
		if !cpu.IsAligned(int(w.Phys), pagesize) || !cpu.IsAligned(w.Size, pagesize) {
			m.Close()
			return nil, fmt.Errorf("devmem: window 0x%08x+0x%x not page aligned", uint32(w.Phys), w.Size)
		}
		b, err := unix.Mmap(int(f.Fd()), int64(w.Phys), w.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("devmem: map 0x%08x: %w", uint32(w.Phys), err)
		}
		m.maps = append(m.maps, mapping{phys: w.Phys, mem: b})
	}
	return m, nil
}

// Close unmaps all windows.
func (m *Mem) Close() error {
	var err error
	for _, mp := range m.maps {
		if e := unix.Munmap(mp.mem); e != nil && err == nil {
			err = e
		}
	}
	m.maps = nil
	if e := m.f.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

func (m *Mem) Load32(addr cpu.Addr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m.reg(addr, 4)[0])))
}

func (m *Mem) Store32(addr cpu.Addr, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.reg(addr, 4)[0])), v)
}

func (m *Mem) Load64(addr cpu.Addr) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.reg(addr, 8)[0])))
}

func (m *Mem) Store64(addr cpu.Addr, v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&m.reg(addr, 8)[0])), v)
}

// LoadQuad reads the low half first. FIFOs pop on the access to the high
// half.
func (m *Mem) LoadQuad(addr cpu.Addr) ee.Quad {
	p := m.reg(addr, cpu.QWordSize)
	lo := atomic.LoadUint64((*uint64)(unsafe.Pointer(&p[0])))
	hi := atomic.LoadUint64((*uint64)(unsafe.Pointer(&p[8])))
	return ee.Quad{lo, hi}
}

func (m *Mem) StoreQuad(addr cpu.Addr, v ee.Quad) {
	p := m.reg(addr, cpu.QWordSize)
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&p[0])), v[0])
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&p[8])), v[1])
}
