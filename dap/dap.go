// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dap implements the L2 Debug Access Port layer: it frames Access
// Port reads/writes through the Debug Port's SELECT register, caches bank
// selection, and owns debug-domain power-up and sticky-error clearing.
package dap

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dualhart/rvdbg/rvdbgerr"
)

// Debug Port register addresses (spec.md §6).
const (
	RegIDCODE = 0x0
	RegCTRL   = 0x4
	RegSELECT = 0x8
	RegRDBUFF = 0xC
)

// CTRL/STAT bits relevant to power-up and sticky-error clearing.
const (
	ctrlCSYSPWRUPREQ = 1 << 30
	ctrlCSYSPWRUPACK = 1 << 31
	ctrlCDBGPWRUPREQ = 1 << 28
	ctrlCDBGPWRUPACK = 1 << 29
	ctrlSTICKYERR    = 1 << 5
	ctrlWDATAERR     = 1 << 7
	ctrlSTICKYORUN   = 1 << 1
	ctrlSTICKYCMP    = 1 << 4
)

// selectCtrlSel is bits[11:8] of SELECT: non-standard but required by
// this target's SELECT encoding (spec.md §4.2 step 2).
const selectCtrlSel = 0xD << 8

// wireEngine is the subset of swd.Engine that the DAP layer needs. It is
// a small, locally-defined interface so dap can be tested against a
// fake without depending on swd's pio-level plumbing.
type wireEngine interface {
	ReadDPRaw(reg byte) (uint32, error)
	WriteDPRaw(reg byte, v uint32) error
	ReadAPRaw(reg byte) (uint32, error)
	WriteAPRaw(reg byte, v uint32) error
}

// DAP is the DAP Engine (spec.md §4.2).
type DAP struct {
	wire wireEngine
	log  zerolog.Logger

	powered      bool
	apselCached  byte
	bankCached   byte
	ctrlselValid bool // whether apselCached/bankCached reflect a real prior SELECT write
}

// New wraps a wire engine as a DAP Engine.
func New(wire wireEngine, log zerolog.Logger) *DAP {
	return &DAP{wire: wire, log: log.With().Str("layer", "dap").Logger()}
}

// IsPowered reports whether both CDBGPWRUPACK and CSYSPWRUPACK have been
// observed (spec.md §3 DAP state).
func (d *DAP) IsPowered() bool { return d.powered }

// ReadDP reads a Debug Port register directly; it never touches the
// SELECT cache.
func (d *DAP) ReadDP(reg byte) (uint32, error) {
	v, err := d.wire.ReadDPRaw(reg)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// WriteDP writes a Debug Port register directly. Writing RegSELECT this
// way bypasses the cache and is only exposed for diagnostics; production
// code must go through selectBank so the cache cannot desync (spec.md §9
// "bank-selection cache" design note).
func (d *DAP) WriteDP(reg byte, v uint32) error {
	if reg == RegSELECT {
		d.invalidateSelectCache()
	}
	return d.wire.WriteDPRaw(reg, v)
}

// ReadAP reads register reg (an 8-bit AP offset, e.g. 0x00 CSW, 0x04 TAR,
// 0x0C DRW, 0xFC IDR) of the Access Port identified by apsel, selecting
// its bank if not already cached, then flushing the pipelined read via
// RDBUFF (spec.md §4.2 step 3).
func (d *DAP) ReadAP(apsel, reg byte) (uint32, error) {
	if err := d.selectBank(apsel, (reg>>4)&0xF); err != nil {
		return 0, err
	}
	if _, err := d.wire.ReadAPRaw(reg & 0x0F); err != nil {
		return 0, err
	}
	return d.wire.ReadDPRaw(RegRDBUFF)
}

// WriteAP writes register reg of the Access Port identified by apsel,
// selecting its bank if not already cached, then flushing the posted
// write via RDBUFF to surface any latched FAULT (spec.md §4.2 step 4).
func (d *DAP) WriteAP(apsel, reg byte, v uint32) error {
	if err := d.selectBank(apsel, (reg>>4)&0xF); err != nil {
		return err
	}
	if err := d.wire.WriteAPRaw(reg&0x0F, v); err != nil {
		return err
	}
	_, err := d.wire.ReadDPRaw(RegRDBUFF)
	return err
}

// selectBank writes SELECT with (apsel, bank, ctrlsel=1) unless the cache
// already reflects it (spec.md §4.2 step 2).
func (d *DAP) selectBank(apsel, bank byte) error {
	if d.ctrlselValid && d.apselCached == apsel && d.bankCached == bank {
		return nil
	}
	sel := uint32(apsel)<<12 | selectCtrlSel | uint32(bank)<<4 | 1
	if err := d.wire.WriteDPRaw(RegSELECT, sel); err != nil {
		d.invalidateSelectCache()
		return err
	}
	d.apselCached, d.bankCached, d.ctrlselValid = apsel, bank, true
	return nil
}

func (d *DAP) invalidateSelectCache() {
	d.ctrlselValid = false
}

// PowerUp clears CTRL/STAT, requests both debug and system power-up, and
// polls for both acknowledgments (spec.md §4.2 power-up, up to 10
// iterations at 20ms each).
func (d *DAP) PowerUp() error {
	if err := d.wire.WriteDPRaw(RegCTRL, 0); err != nil {
		return err
	}
	if err := d.wire.WriteDPRaw(RegCTRL, ctrlCDBGPWRUPREQ|ctrlCSYSPWRUPREQ); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		v, err := d.wire.ReadDPRaw(RegCTRL)
		if err != nil {
			return err
		}
		if v&(ctrlCDBGPWRUPACK|ctrlCSYSPWRUPACK) == (ctrlCDBGPWRUPACK | ctrlCSYSPWRUPACK) {
			d.powered = true
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return rvdbgerr.New(rvdbgerr.Timeout, "debug domain power-up did not acknowledge")
}

// ClearErrors writes CTRL/STAT to clear STICKYERR, WDATAERR, STICKYORUN
// and STICKYCMP (write-1-to-clear each, spec.md §4.2).
func (d *DAP) ClearErrors() error {
	return d.wire.WriteDPRaw(RegCTRL, ctrlSTICKYERR|ctrlWDATAERR|ctrlSTICKYORUN|ctrlSTICKYCMP)
}
