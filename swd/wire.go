// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package swd implements the L1 SWD line-protocol engine: it marshals
// requests, acknowledgments and data packets onto the wire through a
// pio.Engine, retries on WAIT, and performs the dormant→SWD activation
// handshake. It knows nothing about Debug Port or Access Port register
// semantics beyond the 4-bit address used to compute request parity;
// that belongs to package dap.
package swd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualhart/rvdbg/pio"
	"github.com/dualhart/rvdbg/rvdbgerr"
)

// Engine is the Wire Engine (spec.md §4.1). It is not safe for
// concurrent use: a Target session drives it from a single goroutine
// (spec.md §5).
type Engine struct {
	pio pio.Engine
	log zerolog.Logger

	retryCount  int
	turnarounds int
	sysClockKHz uint32
	freqKHz     uint32
	connected   bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRetryCount overrides the default WAIT retry budget (5).
func WithRetryCount(n int) Option {
	return func(e *Engine) { e.retryCount = n }
}

// WithTurnarounds overrides the default single turnaround clock (1).
func WithTurnarounds(n int) Option {
	return func(e *Engine) { e.turnarounds = n }
}

// WithSystemClock records the probe's system clock, used by SetFrequency
// to compute the state-machine clock divider.
func WithSystemClock(khz uint32) Option {
	return func(e *Engine) { e.sysClockKHz = khz }
}

// New wraps a pio.Engine as a Wire Engine.
func New(p pio.Engine, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		pio:         p,
		log:         log.With().Str("layer", "swd").Logger(),
		retryCount:  defaultRetryCount,
		turnarounds: defaultTurnarounds,
		sysClockKHz: 125000,
		freqKHz:     1000,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Connect performs the dormant→SWD activation handshake (spec.md §4.1)
// and reads IDCODE to confirm the target is alive and talking SWD.
func (e *Engine) Connect() error {
	if err := e.SetFrequency(e.freqKHz); err != nil {
		return err
	}
	if err := e.writeBytes(jtagToDormant); err != nil {
		return err
	}
	if err := e.writeBytes(append([]byte{0xFF}, selectionAlert...)); err != nil {
		return err
	}
	if err := e.writeBytes(swdActivationCode); err != nil {
		return err
	}
	if err := e.writeBytes([]byte{0xFF}); err != nil {
		return err
	}
	if err := e.LineReset(); err != nil {
		return err
	}
	if err := e.SendIdleClocks(4); err != nil {
		return err
	}

	idcode, err := e.ReadDPRaw(RegIDCODE)
	if err != nil {
		return err
	}
	if designer := (idcode >> 1) & 0x7FF; designer == 0 {
		return rvdbgerr.New(rvdbgerr.Protocol, "idcode %#08x has zero designer field", idcode)
	}
	e.log.Debug().Uint32("idcode", idcode).Msg("swd activated")
	e.connected = true
	return nil
}

// IsConnected reports whether Connect has completed successfully and
// Disconnect has not since been called (spec.md §6 "is_connected").
func (e *Engine) IsConnected() bool { return e.connected }

// Disconnect releases the underlying pio.Engine.
func (e *Engine) Disconnect() error {
	e.connected = false
	return e.pio.Close()
}

// LineReset drives SWDIO high for at least 50 clocks.
func (e *Engine) LineReset() error {
	if err := e.pio.LineReset(50); err != nil {
		return rvdbgerr.New(rvdbgerr.Protocol, "line reset: %v", err)
	}
	return nil
}

// SendIdleClocks drives n low clocks.
func (e *Engine) SendIdleClocks(n int) error {
	return e.pio.SendIdleClocks(n)
}

// SetFrequency reprograms the state-machine clock divider for a target
// SWCLK frequency in kHz.
func (e *Engine) SetFrequency(khz uint32) error {
	div, err := pio.ClockDivider(e.sysClockKHz, khz)
	if err != nil {
		return rvdbgerr.New(rvdbgerr.InvalidParam, "%v", err)
	}
	if err := e.pio.SetClockDiv(div); err != nil {
		return rvdbgerr.New(rvdbgerr.Protocol, "set clock div: %v", err)
	}
	e.freqKHz = khz
	return nil
}

// GetFrequency returns the last programmed SWCLK frequency in kHz.
func (e *Engine) GetFrequency() uint32 { return e.freqKHz }

// ReadDPRaw reads a Debug Port register, retrying internally on WAIT.
func (e *Engine) ReadDPRaw(reg byte) (uint32, error) {
	return e.transact(false, true, reg, 0)
}

// WriteDPRaw writes a Debug Port register, retrying internally on WAIT.
func (e *Engine) WriteDPRaw(reg byte, v uint32) error {
	_, err := e.transact(false, false, reg, v)
	return err
}

// ReadAPRaw reads the currently-selected Access Port register, retrying
// internally on WAIT. Bank/APSEL selection is the DAP layer's job.
func (e *Engine) ReadAPRaw(reg byte) (uint32, error) {
	return e.transact(true, true, reg, 0)
}

// WriteAPRaw writes the currently-selected Access Port register,
// retrying internally on WAIT.
func (e *Engine) WriteAPRaw(reg byte, v uint32) error {
	_, err := e.transact(true, false, reg, v)
	return err
}

// transact drives one full SWD transaction: request, ack, and (if ack is
// OK) the data phase. WAIT is retried internally up to retryCount times;
// any other result terminates the loop immediately.
func (e *Engine) transact(apndp, rnw bool, reg byte, wdata uint32) (uint32, error) {
	for attempt := 0; ; attempt++ {
		data, ack, err := e.transactOnce(apndp, rnw, reg, wdata)
		if err != nil {
			return 0, err
		}
		switch ack {
		case ackOK:
			return data, nil
		case ackFAULT:
			return 0, rvdbgerr.New(rvdbgerr.Fault, "ap=%v rnw=%v reg=%#x", apndp, rnw, reg)
		case ackWAIT:
			if attempt >= e.retryCount {
				return 0, rvdbgerr.New(rvdbgerr.Timeout, "wait retry budget (%d) exhausted", e.retryCount)
			}
			time.Sleep(retryBackoff * time.Microsecond)
			continue
		default:
			_ = e.LineReset()
			return 0, rvdbgerr.New(rvdbgerr.Protocol, "malformed ack %#x", ack)
		}
	}
}

func (e *Engine) transactOnce(apndp, rnw bool, reg byte, wdata uint32) (uint32, byte, error) {
	a2 := (reg >> 2) & 1
	a3 := (reg >> 3) & 1
	apBit := byte(0)
	if apndp {
		apBit = 1
	}
	rnwBit := byte(0)
	if rnw {
		rnwBit = 1
	}
	parity := apBit ^ rnwBit ^ a2 ^ a3

	req := reqStart |
		apBit<<1 |
		rnwBit<<2 |
		a2<<3 |
		a3<<4 |
		parity<<5 |
		reqStop<<6 |
		reqPark<<7

	if err := e.pio.WriteBits(uint32(req), 8); err != nil {
		return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "request phase: %v", err)
	}
	if err := e.turnaround(); err != nil {
		return 0, 0, err
	}
	ack, err := e.pio.ReadBits(3)
	if err != nil {
		return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "ack phase: %v", err)
	}

	if ack != ackOK {
		if err := e.turnaround(); err != nil {
			return 0, 0, err
		}
		return 0, byte(ack), nil
	}

	if rnw {
		data, err := e.pio.ReadBits(32)
		if err != nil {
			return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "data phase: %v", err)
		}
		parityBit, err := e.pio.ReadBits(1)
		if err != nil {
			return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "parity phase: %v", err)
		}
		if byte(parityBit) != evenParity(data) {
			return 0, 0, rvdbgerr.New(rvdbgerr.Parity, "data %#08x parity mismatch", data)
		}
		if err := e.turnaround(); err != nil {
			return 0, 0, err
		}
		return data, ackOK, nil
	}

	if err := e.turnaround(); err != nil {
		return 0, 0, err
	}
	if err := e.pio.WriteBits(wdata, 32); err != nil {
		return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "data phase: %v", err)
	}
	if err := e.pio.WriteBits(uint32(evenParity(wdata)), 1); err != nil {
		return 0, 0, rvdbgerr.New(rvdbgerr.Protocol, "parity phase: %v", err)
	}
	return 0, ackOK, nil
}

func (e *Engine) turnaround() error {
	for i := 0; i < e.turnarounds; i++ {
		if err := e.pio.Turnaround(); err != nil {
			return rvdbgerr.New(rvdbgerr.Protocol, "turnaround: %v", err)
		}
	}
	return nil
}

func (e *Engine) writeBytes(b []byte) error {
	for _, v := range b {
		if err := e.pio.WriteBits(uint32(v), 8); err != nil {
			return fmt.Errorf("swd: activation sequence: %w", err)
		}
	}
	return nil
}

// evenParity returns 1 if v has an odd number of set bits (so that
// appending this bit makes the total even), else 0.
func evenParity(v uint32) byte {
	v ^= v >> 16
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return byte(v & 1)
}
