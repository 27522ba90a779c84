// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd

// Debug Port register addresses (spec.md §6).
const (
	RegIDCODE = 0x0 // R
	RegCTRL   = 0x4 // R/W (CTRL/STAT)
	RegSELECT = 0x8 // W
	RegRDBUFF = 0xC // R
)

// ACK phase values (3 bits, LSB first as transmitted; these are the
// right-aligned decoded values).
const (
	ackOK    = 0x1
	ackWAIT  = 0x2
	ackFAULT = 0x4
)

// Request-byte framing bits (spec.md §4.1, §6).
const (
	reqStart = 1
	reqStop  = 0
	reqPark  = 1
)

// Dormant→SWD activation sequence (spec.md §4.1(a-e), GLOSSARY).
//
// jtagToDormant is at least 56 clocks high (7 bytes of 0xFF) followed by
// the two-byte JTAG-to-dormant marker; harmless if the port is already in
// SWD or dormant state.
var jtagToDormant = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xBC, 0xE3}

// selectionAlert is the fixed ADI-v6 128-bit selection-alert constant.
var selectionAlert = []byte{
	0x92, 0xF3, 0x09, 0x62, 0x95, 0x2D, 0x85, 0x86,
	0xE9, 0xAF, 0xDD, 0xE3, 0xA2, 0x0E, 0xBC, 0x19,
}

// swdActivationCode is clocked immediately after selectionAlert: 0xFF, the
// alert bytes (supplied separately, see Engine.Connect), then the 8-bit
// SWD activation code 0xA0 0xF1, then a line reset (≥50 clocks high,
// built separately) and a handful of idle clocks.
var swdActivationCode = []byte{0xA0, 0xF1}

const (
	defaultRetryCount  = 5
	defaultTurnarounds = 1
	retryBackoff       = 100 // microseconds between WAIT retries
)
