// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package memap implements the MEM-AP Pathway: 32-bit memory accesses via
// TAR/DRW/RDBUFF against a single, fixed Access Port slot, used by the DM
// driver to reach the Debug Module's register file. Package rvdbg also
// exposes it directly (DAPReadMem32/DAPWriteMem32); nothing switches to
// it automatically when the System Bus Access pathway is unavailable.
package memap

import (
	"github.com/rs/zerolog"

	"github.com/dualhart/rvdbg/rvdbgerr"
)

// Access Port register offsets (spec.md §6).
const (
	RegCSW = 0x00
	RegTAR = 0x04
	RegDRW = 0x0C
	RegIDR = 0xFC
)

// AP slot assignments (spec.md §6). Only RISC-V APB is wired to any
// operation; the others are documented extension points.
const (
	APROMTable   = 0x0
	APARMCore0   = 0x2
	APARMCore1   = 0x4
	APSoCSpecial = 0x8
	APRISCV      = 0xA
)

// cswNoAutoIncrement is the CSW value the DM init handshake programs
// before addressing the DM register file: 32-bit transfer size, no
// address auto-increment (spec.md §4.3).
const cswNoAutoIncrement = 0xA2000002

// dapPort is the subset of dap.DAP the memap layer needs.
type dapPort interface {
	ReadAP(apsel, reg byte) (uint32, error)
	WriteAP(apsel, reg byte, v uint32) error
}

// Accessor is the MEM-AP Pathway, bound to one fixed APSEL.
type Accessor struct {
	dap   dapPort
	apsel byte
	log   zerolog.Logger
}

// New binds a MEM-AP pathway to the given Access Port slot of dap.
func New(dap dapPort, apsel byte, log zerolog.Logger) *Accessor {
	return &Accessor{dap: dap, apsel: apsel, log: log.With().Str("layer", "memap").Logger()}
}

// ReadMem32 reads a 4-byte-aligned 32-bit word via TAR/DRW/RDBUFF.
func (a *Accessor) ReadMem32(addr uint32) (uint32, error) {
	if addr&0x3 != 0 {
		return 0, rvdbgerr.New(rvdbgerr.Alignment, "read32 addr %#08x not 4-byte aligned", addr)
	}
	if err := a.dap.WriteAP(a.apsel, RegTAR, addr); err != nil {
		return 0, err
	}
	return a.dap.ReadAP(a.apsel, RegDRW)
}

// WriteMem32 writes a 4-byte-aligned 32-bit word via TAR/DRW, flushing
// the posted write through RDBUFF (handled inside dap.WriteAP).
func (a *Accessor) WriteMem32(addr, v uint32) error {
	if addr&0x3 != 0 {
		return rvdbgerr.New(rvdbgerr.Alignment, "write32 addr %#08x not 4-byte aligned", addr)
	}
	if err := a.dap.WriteAP(a.apsel, RegTAR, addr); err != nil {
		return err
	}
	return a.dap.WriteAP(a.apsel, RegDRW, v)
}

// InitDMHandshake performs the undocumented bank-CSW activation sequence
// that brings the Debug Module's register file online (spec.md §4.3).
// It is exposed here, rather than inlined in package dm, because it is
// built entirely out of MEM-AP primitives (bank selection via a
// non-standard CSW offset, TAR, RDBUFF) and nothing DM-specific.
func (a *Accessor) InitDMHandshake(dmControlOffset uint32, sleep func()) (uint32, error) {
	if err := a.dap.WriteAP(a.apsel, RegCSW, cswNoAutoIncrement); err != nil {
		return 0, err
	}
	if err := a.dap.WriteAP(a.apsel, RegTAR, dmControlOffset); err != nil {
		return 0, err
	}
	// "switch to RISC-V AP bank 1": bank is (reg>>4)&0xF, so address the
	// banked-CSW register at offset 0x10.
	const bank1CSW = 0x10
	steps := []uint32{0x00000000, 0x00000001, 0x07FFFFC1}
	var status uint32
	for _, step := range steps {
		if err := a.dap.WriteAP(a.apsel, bank1CSW, step); err != nil {
			return 0, err
		}
		v, err := a.dap.ReadAP(a.apsel, bank1CSW)
		if err != nil {
			return 0, err
		}
		status = v
		sleep()
	}
	return status, nil
}

// SelectBank0 returns the MEM-AP to bank 0 (TAR/DRW), used after the DM
// init handshake leaves the SELECT cache pointed at bank 1.
func (a *Accessor) SelectBank0() error {
	// Any bank-0 register access reselects bank 0 through the DAP cache.
	_, err := a.dap.ReadAP(a.apsel, RegCSW)
	return err
}
