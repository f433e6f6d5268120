//go:build linux

package devmem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/clktmr/ps2/ee"
	"github.com/clktmr/ps2/ee/cpu"
)

// A regular file stands in for the memory device, its offsets are the
// physical addresses.
func TestMapFile(t *testing.T) {
	page := unix.Getpagesize()
	path := filepath.Join(t.TempDir(), "mem")
	require.NoError(t, os.WriteFile(path, make([]byte, 4*page), 0o600))

	base := cpu.Addr(2 * page)
	m, err := Open(path, Window{Phys: base, Size: page})
	require.NoError(t, err)

	m.Store32(base+4, 0xdeadbeef)
	m.Store64(base+8, 0x0123456789abcdef)
	m.StoreQuad(base+16, ee.Quad{1, 2})
	assert.Equal(t, uint32(0xdeadbeef), m.Load32(base+4))
	assert.Equal(t, uint64(0x0123456789abcdef), m.Load64(base+8))
	assert.Equal(t, ee.Quad{1, 2}, m.LoadQuad(base+16))

	b, err := m.Bytes(base, 32)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(b[4:]))

	_, err = m.Bytes(base+cpu.Addr(page)-4, 8)
	assert.ErrorIs(t, err, ErrUnmapped)
	assert.Panics(t, func() { m.Load32(0) })

	require.NoError(t, m.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(raw[2*page+4:]))
}

func TestOpenUnaligned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o600))

	_, err := Open(path, Window{Phys: 0x10, Size: 0x1000})
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
