// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pio defines the boundary between this module's SWD wire engine
// and the probe's programmable I/O block.
//
// It deliberately says nothing about how a concrete state-machine program
// is assembled or loaded: that is hardware-specific and is supplied by a
// collaborator package outside this module's scope (see spec.md §1). This
// package only fixes the shape of the interface the swd package programs
// against, plus the small amount of arithmetic (clock divider, frequency
// formatting) that is target-independent.
package pio

import (
	"fmt"
	"time"
)

// Engine is the hardware collaborator that drives SWCLK/SWDIO through a
// programmable I/O state machine. A concrete implementation owns exactly
// one acquired slot of a ResourceTracker-managed block (see package
// rvdbg's resource tracker) and is not safe for concurrent use (spec.md
// §5: single-threaded, no internal concurrency).
type Engine interface {
	// SetClockDiv programs the state-machine clock divider computed by
	// ClockDivider. It takes effect on the next bit clocked.
	SetClockDiv(div uint16) error

	// LineReset drives SWDIO high for at least n clocks with no
	// request/ack framing, per the SWD line-reset sequence.
	LineReset(clocks int) error

	// SendIdleClocks drives SWDIO low for n clocks.
	SendIdleClocks(n int) error

	// WriteBits shifts out the low n bits of v, LSB first.
	WriteBits(v uint32, n int) error

	// ReadBits shifts in n bits LSB first and returns them right-aligned.
	ReadBits(n int) (uint32, error)

	// Turnaround drives one quiescent SWCLK cycle used whenever SWDIO
	// ownership changes between host and target.
	Turnaround() error

	// Close releases the underlying state-machine slot. It is always
	// safe to call more than once.
	Close() error
}

// ClockDivider computes the programmable I/O clock divider for a target
// SWCLK frequency, given the system clock, per spec.md §6:
//
//	divider = ceil((ceil(sysKHz/targetKHz) + 3) / 4)
//
// where 4 is the cycles-per-bit of the state-machine program. The result
// is clamped to [1, 65535].
func ClockDivider(sysKHz, targetKHz uint32) (uint16, error) {
	if targetKHz == 0 {
		return 0, fmt.Errorf("pio: target frequency must be non-zero")
	}
	cyclesPerBit := ceilDiv(sysKHz, targetKHz)
	div := ceilDiv(cyclesPerBit+3, 4)
	if div < 1 {
		div = 1
	}
	if div > 65535 {
		div = 65535
	}
	return uint16(div), nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Frequency is a kHz-resolution clock rate, used for the wire engine's
// SWCLK setting. Narrowed from conn/physic.Frequency's Stringer/Set
// pattern down to the single unit this module actually needs.
type Frequency uint32

// String formats the frequency in the largest whole unit that doesn't
// lose precision: kHz or MHz.
func (f Frequency) String() string {
	if f != 0 && f%1000 == 0 {
		return fmt.Sprintf("%dMHz", f/1000)
	}
	return fmt.Sprintf("%dkHz", uint32(f))
}

// Period returns the duration of one clock cycle at this frequency.
func (f Frequency) Period() time.Duration {
	if f == 0 {
		return 0
	}
	return time.Second / time.Duration(f) / 1000
}

// PinSet names the two wires this module drives; hardware-specific pin
// numbering is owned by the collaborator that constructs an Engine, this
// struct only records it for logging/diagnostics.
type PinSet struct {
	SWCLK string
	SWDIO string
}
