package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ps2testing "github.com/clktmr/ps2/testing"
)

const sample = `
hardware:
  backend: sim
  regs: 0x10000000
arena:
  phys: 0x01000000
  size: 4MiB
dma:
  watchdog: 250ms
  pio_spin_limit: 5000
  queue_size: 8
  verbose: yes
logging:
  level: debug
  format: json
`

func TestConfig_Load(t *testing.T) {
	l := ps2testing.NewLogger()
	c := NewC(l)

	assert.Error(t, c.LoadString(" invalid yaml"))
	assert.Error(t, c.LoadString(""))

	path := filepath.Join(t.TempDir(), "gsimage.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	require.NoError(t, c.Load(path))
	assert.Equal(t, path, c.Path())
	assert.Equal(t, "sim", c.GetString("hardware.backend", "devmem"))

	assert.Error(t, c.Load(filepath.Join(t.TempDir(), "missing.yml")))
}

func TestConfig_Get(t *testing.T) {
	c := NewC(ps2testing.NewLogger())
	require.NoError(t, c.LoadString(sample))

	assert.Equal(t, uint32(0x10000000), c.GetUint32("hardware.regs", 0))
	assert.Equal(t, uint32(0x12000000), c.GetUint32("hardware.gs_regs", 0x12000000))
	assert.Equal(t, 4<<20, c.GetSize("arena.size", 0))
	assert.Equal(t, 250*time.Millisecond, c.GetDuration("dma.watchdog", time.Second))
	assert.Equal(t, 5000, c.GetInt("dma.pio_spin_limit", 0))
	assert.True(t, c.GetBool("dma.verbose", false))
	assert.True(t, c.IsSet("dma.queue_size"))
	assert.False(t, c.IsSet("dma.nope"))
	assert.Nil(t, c.Get("hardware.regs.nope"))

	// malformed values fall back to the default
	c.Settings["dma"] = map[string]any{"watchdog": "soon", "queue_size": "many"}
	assert.Equal(t, time.Second, c.GetDuration("dma.watchdog", time.Second))
	assert.Equal(t, 32, c.GetInt("dma.queue_size", 32))
}

func TestConfig_GetSize(t *testing.T) {
	c := NewC(ps2testing.NewLogger())
	for in, want := range map[string]int{
		"4096":   4096,
		"0x1000": 4096,
		"64KiB":  64 << 10,
		"2M":     2 << 20,
		"1 GiB":  1 << 30,
		"-1K":    7,
		"lots":   7,
	} {
		c.Settings["size"] = in
		assert.Equal(t, want, c.GetSize("size", 7), in)
	}
}

func TestConfigureLogger(t *testing.T) {
	l := logrus.New()
	c := NewC(l)
	require.NoError(t, c.LoadString(sample))
	require.NoError(t, c.ConfigureLogger())
	assert.Equal(t, logrus.DebugLevel, l.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	c.Settings["logging"] = map[string]any{"level": "loud"}
	assert.Error(t, c.ConfigureLogger())

	c.Settings["logging"] = map[string]any{"format": "xml"}
	assert.Error(t, c.ConfigureLogger())
}
