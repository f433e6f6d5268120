// Package config reads the YAML settings of the gsimage tools. Values are
// addressed by dotted keys, e.g. "dma.watchdog", and every getter takes the
// default to return when a key is missing or malformed.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"
)

type C struct {
	path     string
	Settings map[string]any
	l        *logrus.Logger
}

func NewC(l *logrus.Logger) *C {
	return &C{
		Settings: make(map[string]any),
		l:        l,
	}
}

// Load reads the YAML file at path.
func (c *C) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.path = path
	return c.parseRaw(b)
}

func (c *C) LoadString(raw string) error {
	if raw == "" {
		return errors.New("config: empty configuration")
	}
	return c.parseRaw([]byte(raw))
}

// Path returns the file loaded last, if any.
func (c *C) Path() string { return c.path }

func (c *C) parseRaw(b []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	c.Settings = m
	return nil
}

// GetString will get the string for k or return the default d if not found
func (c *C) GetString(k, d string) string {
	r := c.Get(k)
	if r == nil {
		return d
	}
	return fmt.Sprintf("%v", r)
}

// GetInt will get the int for k or return the default d if not found or invalid
func (c *C) GetInt(k string, d int) int {
	r := c.GetString(k, strconv.Itoa(d))
	v, err := strconv.ParseInt(r, 0, 64)
	if err != nil {
		return d
	}
	return int(v)
}

// GetUint32 will get the uint32 for k or return the default d if not found or invalid
func (c *C) GetUint32(k string, d uint32) uint32 {
	r := c.GetInt(k, int(d))
	if r < 0 || uint64(r) > uint64(math.MaxUint32) {
		return d
	}
	return uint32(r)
}

// GetBool will get the bool for k or return the default d if not found or invalid
func (c *C) GetBool(k string, d bool) bool {
	r := strings.ToLower(c.GetString(k, fmt.Sprintf("%v", d)))
	v, err := strconv.ParseBool(r)
	if err != nil {
		switch r {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		return d
	}
	return v
}

// GetDuration will get the duration for k or return the default d if not found or invalid
func (c *C) GetDuration(k string, d time.Duration) time.Duration {
	r := c.GetString(k, "")
	v, err := time.ParseDuration(r)
	if err != nil {
		return d
	}
	return v
}

var sizeSuffixes = []struct {
	suffix string
	shift  uint
}{
	{"KiB", 10}, {"MiB", 20}, {"GiB", 30}, {"K", 10}, {"M", 20}, {"G", 30},
}

// GetSize will get a byte count like "4MiB" or 4096 for k or return the
// default d if not found or invalid
func (c *C) GetSize(k string, d int) int {
	r := strings.TrimSpace(c.GetString(k, ""))
	if r == "" {
		return d
	}
	shift := uint(0)
	for _, s := range sizeSuffixes {
		if strings.HasSuffix(r, s.suffix) {
			r, shift = strings.TrimSpace(strings.TrimSuffix(r, s.suffix)), s.shift
			break
		}
	}
	v, err := strconv.ParseInt(r, 0, 64)
	if err != nil || v < 0 || v > math.MaxInt>>shift {
		return d
	}
	return int(v) << shift
}

func (c *C) Get(k string) any {
	return c.get(k, c.Settings)
}

func (c *C) IsSet(k string) bool {
	return c.get(k, c.Settings) != nil
}

func (c *C) get(k string, v any) any {
	parts := strings.Split(k, ".")
	for _, p := range parts {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}

		v, ok = m[p]
		if !ok {
			return nil
		}
	}

	return v
}
