// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rvdbg

// TraceEntry is one single-stepped instruction boundary: the PC the
// hart is halted at, the 32-bit instruction word fetched from that PC,
// and (when captureRegs was requested) a snapshot of its GPR file.
type TraceEntry struct {
	PC   uint32
	Insn uint32
	GPRs [32]uint32
}

// Trace single-steps hartID, recording a TraceEntry at each instruction
// boundary before stepping past it: read PC, read the instruction word
// at PC, optionally snapshot the GPR file, invoke onEntry, then step
// (spec.md §4.7). onEntry returning true stops the trace early, after
// that entry is recorded but before the corresponding step executes.
// maxSteps of 0 means run with no step ceiling, relying on onEntry (or
// a later error) to end the trace. captureRegs controls whether each
// entry pays for a full ReadAllRegs round trip.
//
// Trace returns the number of steps actually taken. On failure it
// returns the negated number of completed steps together with the
// error, so a failure before the first completed step returns 0 and a
// non-nil err. The error is always returned, never swallowed.
func (t *Target) Trace(hartID int, maxSteps int, captureRegs bool, onEntry func(TraceEntry) bool) (int, error) {
	halted, err := t.dm.IsHalted(hartID)
	if err != nil {
		return 0, err
	}
	if !halted {
		if err := t.dm.Halt(hartID); err != nil && !isAlreadyHalted(err) {
			return 0, err
		}
	}

	steps := 0
	for maxSteps == 0 || steps < maxSteps {
		pc, err := t.dm.ReadPC(hartID)
		if err != nil {
			return -steps, err
		}
		insn, err := t.dm.SBAReadMem32(pc)
		if err != nil {
			return -steps, err
		}
		entry := TraceEntry{PC: pc, Insn: insn}
		if captureRegs {
			gprs, err := t.dm.ReadAllRegs(hartID)
			if err != nil {
				return -steps, err
			}
			entry.GPRs = gprs
		}
		if onEntry != nil && onEntry(entry) {
			return steps, nil
		}
		if err := t.dm.Step(hartID); err != nil {
			return -steps, err
		}
		steps++
	}
	return steps, nil
}
