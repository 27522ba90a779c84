// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sim is a bit-level fake of a pio.Engine backed by a simulated
// SWD target: it decodes the request byte swd.Engine writes, answers
// the ack and data phases out of an in-memory DP/AP register file, and
// lets tests inject WAIT, FAULT, and parity-corruption scenarios. It
// exists to exercise package swd's framing and retry logic without real
// probe hardware.
package sim

// Ack values, mirrored from package swd's private constants since this
// is a standalone collaborator, not an internal test helper.
const (
	AckOK    = 0x1
	AckWAIT  = 0x2
	AckFAULT = 0x4
)

// Engine is a fake pio.Engine. The zero value is not usable; construct
// with New.
type Engine struct {
	DP map[byte]uint32
	AP map[byte]uint32

	// WaitCount answers the next WaitCount ack phases with WAIT before
	// falling through to the normal OK/FAULT decision.
	WaitCount int
	// FaultOnce causes the very next ack phase to answer FAULT.
	FaultOnce bool
	// CorruptParityOnce flips the parity bit of the next data-phase read.
	CorruptParityOnce bool
	// MalformedAckOnce answers the next ack phase with an invalid 3-bit
	// code (neither OK, WAIT, nor FAULT).
	MalformedAckOnce bool

	ClockDiv     uint16
	LineResets   int
	IdleClocks   int
	Turnarounds  int
	Closed       bool

	lastReqByte   byte
	curAPnDP      bool
	curRnW        bool
	curReg        byte
	pendingWrite  uint32
	lastReadData  uint32
}

// New creates a simulated target with empty DP and AP register files.
func New() *Engine {
	return &Engine{DP: map[byte]uint32{}, AP: map[byte]uint32{}}
}

func (e *Engine) SetClockDiv(div uint16) error { e.ClockDiv = div; return nil }
func (e *Engine) LineReset(clocks int) error   { e.LineResets++; return nil }
func (e *Engine) SendIdleClocks(n int) error   { e.IdleClocks += n; return nil }
func (e *Engine) Turnaround() error            { e.Turnarounds++; return nil }
func (e *Engine) Close() error                 { e.Closed = true; return nil }

func (e *Engine) WriteBits(v uint32, n int) error {
	switch n {
	case 8:
		e.lastReqByte = byte(v)
	case 32:
		e.pendingWrite = v
	case 1:
		// Parity bit for a write; commit the pending data regardless of
		// the bit's value since this fake does not validate write parity
		// (spec.md only requires the wire engine to validate read parity
		// from the target's perspective).
		if e.curAPnDP {
			e.AP[e.curReg] = e.pendingWrite
		} else {
			e.DP[e.curReg] = e.pendingWrite
		}
	}
	return nil
}

func (e *Engine) ReadBits(n int) (uint32, error) {
	switch n {
	case 3:
		return uint32(e.decodeRequestAndAck()), nil
	case 32:
		if e.curAPnDP {
			e.lastReadData = e.AP[e.curReg]
		} else {
			e.lastReadData = e.DP[e.curReg]
		}
		return e.lastReadData, nil
	case 1:
		p := evenParity(e.lastReadData)
		if e.CorruptParityOnce {
			e.CorruptParityOnce = false
			p ^= 1
		}
		return uint32(p), nil
	}
	return 0, nil
}

// decodeRequestAndAck interprets the most recently written 8-bit
// request byte (valid only in the ack-phase context ReadBits(3) is
// always called in) and decides the ack to answer with.
func (e *Engine) decodeRequestAndAck() byte {
	req := e.lastReqByte
	e.curAPnDP = (req>>1)&1 == 1
	e.curRnW = (req>>2)&1 == 1
	a2 := (req >> 3) & 1
	a3 := (req >> 4) & 1
	e.curReg = (a3 << 3) | (a2 << 2)

	if e.MalformedAckOnce {
		e.MalformedAckOnce = false
		return 0x0
	}
	if e.WaitCount > 0 {
		e.WaitCount--
		return AckWAIT
	}
	if e.FaultOnce {
		e.FaultOnce = false
		return AckFAULT
	}
	return AckOK
}

func evenParity(v uint32) byte {
	v ^= v >> 16
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return byte(v & 1)
}
