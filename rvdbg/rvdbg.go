// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rvdbg ties the wire, DAP, MEM-AP, and Debug Module layers
// together into a single target handle, and layers memory, upload, and
// trace operations on top of it.
package rvdbg

import (
	"github.com/rs/zerolog"

	"github.com/dualhart/rvdbg/dap"
	"github.com/dualhart/rvdbg/dm"
	"github.com/dualhart/rvdbg/memap"
	"github.com/dualhart/rvdbg/pio"
	"github.com/dualhart/rvdbg/rvdbgerr"
	"github.com/dualhart/rvdbg/swd"
)

// dmDriver is the subset of *dm.Driver the Target type depends on; kept
// as an interface so tests can substitute a driver built over
// internal/targetsim without an import cycle.
type dmDriver interface {
	Init() error
	IsInitialized() bool
	EnableCache(bool)
	InvalidateCache(hartID int) error
	Halt(hartID int) error
	Resume(hartID int) error
	Step(hartID int) error
	Reset(hartID int, haltOnReset bool) error
	IsHalted(hartID int) (bool, error)
	ReadReg(hartID, n int) (uint32, error)
	WriteReg(hartID, n int, v uint32) error
	ReadAllRegs(hartID int) ([32]uint32, error)
	ReadPC(hartID int) (uint32, error)
	WritePC(hartID int, pc uint32) error
	ReadCSR(hartID int, csr int) (uint32, error)
	WriteCSR(hartID int, csr int, v uint32) error
	ExecuteProgBuf(hartID int, insns []uint32) error
	SBAStrict(bool)
	SBAReadMem32(addr uint32) (uint32, error)
	SBAWriteMem32(addr, v uint32) error
}

// Target is a connected, initialized debug session against one chip.
type Target struct {
	log zerolog.Logger

	wire *swd.Engine
	dap  *dap.DAP
	mem  *memap.Accessor
	dm   dmDriver
	slot *Slot
}

// Open wires a pio.Engine transport into the full stack (SWD wire,
// DAP, MEM-AP bound to the RISC-V APB slot, Debug Module driver) and
// performs the full bring-up sequence: dormant-to-SWD activation, DAP
// power-up, and the Debug Module's undocumented init handshake.
func Open(p pio.Engine, slot *Slot, log zerolog.Logger, cfg Config) (*Target, error) {
	wireOpts := []swd.Option{
		swd.WithRetryCount(cfg.SWD.RetryCount),
		swd.WithTurnarounds(cfg.SWD.Turnarounds),
	}
	wire := swd.New(p, log, wireOpts...)
	if err := wire.Connect(); err != nil {
		return nil, err
	}
	if cfg.SWD.ClockKHz != 0 {
		if err := wire.SetFrequency(cfg.SWD.ClockKHz); err != nil {
			return nil, err
		}
	}

	d := dap.New(wire, log)
	if err := d.PowerUp(); err != nil {
		return nil, err
	}

	mem := memap.New(d, memap.APRISCV, log)
	driver := dm.New(mem, log)
	driver.SBAStrict(cfg.SBA.Strict)
	if err := driver.Init(); err != nil {
		return nil, err
	}

	t := &Target{
		log:  log.With().Str("layer", "rvdbg").Logger(),
		wire: wire,
		dap:  d,
		mem:  mem,
		dm:   driver,
		slot: slot,
	}
	return t, nil
}

// Close tears down the wire connection and releases the PIO slot, if
// one was provided to Open.
func (t *Target) Close() error {
	err := t.wire.Disconnect()
	if t.slot != nil {
		t.slot.Release()
	}
	return err
}

// Halt, Resume, Step, and Reset delegate directly to the Debug Module
// driver; the hart-cache and DMCONTROL bookkeeping lives there.

func (t *Target) Halt(hartID int) error                   { return t.dm.Halt(hartID) }
func (t *Target) Resume(hartID int) error                 { return t.dm.Resume(hartID) }
func (t *Target) Step(hartID int) error                   { return t.dm.Step(hartID) }
func (t *Target) Reset(hartID int, haltOnReset bool) error { return t.dm.Reset(hartID, haltOnReset) }
func (t *Target) IsHalted(hartID int) (bool, error)        { return t.dm.IsHalted(hartID) }

func (t *Target) ReadReg(hartID, n int) (uint32, error)     { return t.dm.ReadReg(hartID, n) }
func (t *Target) WriteReg(hartID, n int, v uint32) error    { return t.dm.WriteReg(hartID, n, v) }
func (t *Target) ReadAllRegs(hartID int) ([32]uint32, error) { return t.dm.ReadAllRegs(hartID) }
func (t *Target) ReadPC(hartID int) (uint32, error)         { return t.dm.ReadPC(hartID) }
func (t *Target) WritePC(hartID int, pc uint32) error       { return t.dm.WritePC(hartID, pc) }

func (t *Target) EnableCache(enabled bool) { t.dm.EnableCache(enabled) }

// InvalidateCache drops hartID's GPR mirror (spec.md §6 "invalidate_cache").
func (t *Target) InvalidateCache(hartID int) error { return t.dm.InvalidateCache(hartID) }

// ReadCSR and WriteCSR surface arbitrary CSR access through the Debug
// Module's program-buffer RPC pathway (spec.md §4.3, §6 "read_csr"/
// "write_csr"); hartID must already be halted.
func (t *Target) ReadCSR(hartID int, csr int) (uint32, error)  { return t.dm.ReadCSR(hartID, csr) }
func (t *Target) WriteCSR(hartID int, csr int, v uint32) error { return t.dm.WriteCSR(hartID, csr, v) }

// ExecuteProgBuf runs a caller-supplied instruction sequence through
// the program buffer (spec.md §4.6 "execute_progbuf"); hartID must
// already be halted. Use ReadReg/ReadAllRegs afterward to observe
// whatever the sequence left in the register file.
func (t *Target) ExecuteProgBuf(hartID int, insns []uint32) error {
	return t.dm.ExecuteProgBuf(hartID, insns)
}

// IsPowered reports whether the debug domain's power-up handshake
// completed; it stays true for the life of the session once Open
// succeeds.
func (t *Target) IsPowered() bool { return t.dap.IsPowered() }

// IsConnected reports whether the SWD wire is connected (spec.md §6
// "is_connected").
func (t *Target) IsConnected() bool { return t.wire.IsConnected() }

// IsInitialized reports whether the Debug Module bring-up handshake
// has completed (spec.md §6 "is_initialized").
func (t *Target) IsInitialized() bool { return t.dm.IsInitialized() }

// GetFrequency returns the SWCLK frequency in kHz currently programmed
// (spec.md §6 "get_frequency").
func (t *Target) GetFrequency() uint32 { return t.wire.GetFrequency() }

// ClearDAPErrors clears the Debug Port's sticky error/overrun bits,
// needed after a FAULT ack to let subsequent AP transactions through.
func (t *Target) ClearDAPErrors() error { return t.dap.ClearErrors() }

// SetFrequency reprograms the SWD clock without tearing down the
// session.
func (t *Target) SetFrequency(khz uint32) error { return t.wire.SetFrequency(khz) }

// ReadDP and WriteDP give diagnostic access to a raw Debug Port
// register, bypassing the SELECT bank cache on writes to RegSELECT
// (spec.md §6 "read_dp"/"write_dp"); see dap.DAP.WriteDP.
func (t *Target) ReadDP(reg byte) (uint32, error)  { return t.dap.ReadDP(reg) }
func (t *Target) WriteDP(reg byte, v uint32) error { return t.dap.WriteDP(reg, v) }

// ReadAP and WriteAP give diagnostic access to a raw Access Port
// register on the given APSEL, through the DAP's bank-selection cache
// (spec.md §6 "read_ap"/"write_ap").
func (t *Target) ReadAP(apsel, reg byte) (uint32, error)  { return t.dap.ReadAP(apsel, reg) }
func (t *Target) WriteAP(apsel, reg byte, v uint32) error { return t.dap.WriteAP(apsel, reg, v) }

// DAPReadMem32 and DAPWriteMem32 access target memory through the
// MEM-AP Pathway (TAR/DRW/RDBUFF) rather than System Bus Access
// (spec.md §6 "dap_read_mem32"/"dap_write_mem32"); unlike SBA this
// pathway is intrusive when the target is running. Open fails when the
// target reports no SBA pathway, and the memory operations in memops.go
// always use SBA; nothing falls back to these two automatically.
func (t *Target) DAPReadMem32(addr uint32) (uint32, error) { return t.mem.ReadMem32(addr) }
func (t *Target) DAPWriteMem32(addr, v uint32) error       { return t.mem.WriteMem32(addr, v) }

// requireBothHalted checks, with a fresh DMSTATUS read of each hart,
// that both harts are halted. UploadCode requires it so no hart can
// fetch from the image while it is written; the plain SBA memory
// operations do not require halted harts.
func (t *Target) requireBothHalted() error {
	for hartID := 0; hartID < 2; hartID++ {
		halted, err := t.dm.IsHalted(hartID)
		if err != nil {
			return err
		}
		if !halted {
			return rvdbgerr.New(rvdbgerr.NotHalted, "hart %d not halted", hartID)
		}
	}
	return nil
}
