// The ee package provides a hardware abstraction layer for the PlayStation 2's
// Emotion Engine peripherals.
//
// It implements low-level access to the hardware through a Bus, which is
// either backed by the real register windows (see package devmem) or by a
// simulation (see package eesim). All hardware capabilities are directly
// exposed and in general unsafe. Use the higher level drivers instead.
package ee

// EE User's Manual, chapter 5 (DMAC), 6 (VIF) and 7 (GIF)
